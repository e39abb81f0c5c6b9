package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	lockKey   = "fastqueue:cleanup:lock"
	lockTTL   = 30 * time.Second
	lockOwner = "cleanup"
)

// RedisLock is a SET-NX-with-expiry mutual-exclusion lock backing the
// cleanup scheduler's singleton-tick requirement across replicas. It does
// not attempt fencing tokens: a tick that overruns its TTL may race a
// second instance's tick, which is acceptable because every step the
// scheduler performs is already a plain, idempotent-on-retry update.
type RedisLock struct {
	client *redis.Client
}

// NewRedisLock wraps an existing Redis client.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire attempts to set the lock key with a TTL, returning true if this
// call won the lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey, lockOwner, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire cleanup lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock key regardless of which instance set it: the
// stored value does not identify an owner, so a release after TTL expiry
// and re-acquisition elsewhere deletes the other instance's lock. Deleting
// a key that no longer exists is not an error.
func (l *RedisLock) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, lockKey).Err(); err != nil {
		return fmt.Errorf("release cleanup lock: %w", err)
	}
	return nil
}
