package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	logger.Init("error")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewService(client), mr
}

func TestAcquire_Exclusive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))
	assert.False(t, svc.Acquire(ctx, "auction:1", time.Minute))

	// A different key is independent.
	assert.True(t, svc.Acquire(ctx, "auction:2", time.Minute))
}

func TestRelease_AllowsReacquire(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))
	svc.Release(ctx, "auction:1")
	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))
}

func TestAcquire_LeaseExpires(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Acquire(ctx, "auction:1", 100*time.Millisecond))
	assert.False(t, svc.Acquire(ctx, "auction:1", 100*time.Millisecond))

	// A crashed holder never releases; the TTL must free the key.
	mr.FastForward(150 * time.Millisecond)
	assert.True(t, svc.Acquire(ctx, "auction:1", 100*time.Millisecond))
}

func TestAcquireWithRetry_TimesOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))

	start := time.Now()
	ok := svc.AcquireWithRetry(ctx, "auction:1", 200*time.Millisecond, time.Minute)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireWithRetry_SucceedsAfterRelease(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))

	go func() {
		time.Sleep(100 * time.Millisecond)
		svc.Release(ctx, "auction:1")
	}()

	ok := svc.AcquireWithRetry(ctx, "auction:1", time.Second, time.Minute)
	assert.True(t, ok)
}

func TestAcquireWithRetry_ContextCancelled(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, svc.Acquire(ctx, "auction:1", time.Minute))
	cancel()

	ok := svc.AcquireWithRetry(ctx, "auction:1", time.Second, time.Minute)
	assert.False(t, ok)
}
