// Package lock serializes checkouts of the same user across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is still held by someone else
// after the wait budget is spent.
var ErrNotAcquired = errors.New("lock not acquired")

const retryInterval = 25 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another checkout is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the part of go-redis the locker needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker hands out per-user locks stored as Redis keys with a TTL.
type RedisLocker struct {
	client Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker returns a locker whose locks expire after ttl and whose
// Acquire gives up after wait.
func NewRedisLocker(client Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func lockKey(userID string) string {
	return "checkout-lock:" + userID
}

// Acquire blocks until the user's lock is taken, the wait budget runs out
// (ErrNotAcquired) or ctx is done. The returned func releases the lock.
func (l *RedisLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: user %s", ErrNotAcquired, userID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	// the caller's context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
