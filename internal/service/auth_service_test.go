package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

type fakeUserStore struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrEmailTaken
	}
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func newTestAuthService() (*AuthService, *fakeUserStore) {
	users := newFakeUserStore()
	tokens := NewTokenManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 30*24*time.Hour)
	return NewAuthService(users, tokens), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "Seller@Example.com",
		Password: "correct-horse",
		Role:     models.RoleSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", result.User.Email)
	assert.Equal(t, "seller", result.User.DisplayName)
	assert.Equal(t, models.RoleSeller, result.User.Role)
	assert.NotEmpty(t, result.TokenPair.AccessToken)

	login, err := svc.Login(ctx, LoginInput{Email: "seller@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "seller@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "dup@example.com", Password: "password2"})
	assert.True(t, apperror.IsConflict(err))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "no-at-sign", Password: "password1"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "ok@example.com", Password: "short"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "ok@example.com", Password: "password1", Role: models.RoleAdmin})
	assert.True(t, apperror.IsValidation(err))
}

func TestLoginBannedUser(t *testing.T) {
	svc, users := newTestAuthService()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "banned@example.com", Password: "password1"})
	require.NoError(t, err)
	users.byID[result.User.ID].IsBanned = true

	_, err = svc.Login(ctx, LoginInput{Email: "banned@example.com", Password: "password1"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeForbidden, appErr.Code)
}

func TestRefreshRoundTrip(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "fresh@example.com", Password: "password1"})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, result.TokenPair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(ctx, "garbage.token.here")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestParseAccessRoundTrip(t *testing.T) {
	tokens := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleBuyer}

	pair, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleBuyer, role)

	_, _, err = tokens.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}
