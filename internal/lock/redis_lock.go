package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

const (
	lockPrefix    = "lock:"
	retryInterval = 50 * time.Millisecond
)

// Service is a mutual-exclusion primitive backed by a shared Redis instance.
// A lease is a conditional SET NX with a TTL; the TTL is a safety net against
// crashed holders, so exclusion degrades to "probably exclusive" across a
// crash boundary.
type Service struct {
	client *redis.Client
}

// NewService wraps an existing Redis client.
func NewService(client *redis.Client) *Service {
	return &Service{client: client}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Acquire tries to take the lease once. It returns false both when the key is
// already held and when Redis itself fails; the caller treats either as "busy".
func (s *Service) Acquire(ctx context.Context, key string, lease time.Duration) bool {
	ok, err := s.client.SetNX(ctx, lockPrefix+key, "LOCKED", lease).Result()
	if err != nil {
		logger.Log.WithField("key", key).Errorf("lock: acquire failed: %v", err)
		return false
	}
	return ok
}

// Release drops the lease unconditionally. Callers must release on every exit
// path of a locked section so the key does not stay blocked until TTL expiry.
func (s *Service) Release(ctx context.Context, key string) {
	if err := s.client.Del(ctx, lockPrefix+key).Err(); err != nil {
		logger.Log.WithField("key", key).Errorf("lock: release failed: %v", err)
	}
}

// AcquireWithRetry polls for the lease every 50ms until wait elapses.
// A false return is a normal transient condition, not a fault.
func (s *Service) AcquireWithRetry(ctx context.Context, key string, wait, lease time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if s.Acquire(ctx, key, lease) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryInterval):
		}
	}
}
