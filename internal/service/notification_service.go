package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/models"
)

// UserPusher delivers a realtime message to one connected user, if any.
type UserPusher interface {
	SendToUser(userID uuid.UUID, event string, data interface{})
}

// NotificationService persists notifications and mirrors them to connected
// websocket clients. It implements Notifier for the other services.
type NotificationService struct {
	repo   NotificationStore
	pusher UserPusher
}

func NewNotificationService(repo NotificationStore, pusher UserPusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify stores a notification and pushes it live. Failures are logged and
// swallowed: a lost notification never fails the operation that caused it.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["kind"] = kind

	payload, err := json.Marshal(data)
	if err != nil {
		logger.Log.WithField("kind", kind).Errorf("notification: marshal failed: %v", err)
		return
	}

	n := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Payload: payload,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Log.WithField("user_id", userID).Errorf("notification: save failed: %v", err)
	}

	if s.pusher != nil {
		s.pusher.SendToUser(userID, "notification", data)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
