package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// Up to maxJitter is added to every TTL so entries written together do not
	// expire together.
	maxJitter = 5 * time.Minute
	// The generation outlives any listing stored under it.
	generationTTL = 24 * time.Hour
)

// setIfGeneration stores the listing only while the generation still matches
// the one read before the listing was loaded.
var setIfGeneration = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[2]) or "0")
if gen ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

func NewRedisCache(client redis.Cmdable, baseTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

func (r *RedisCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, gen int64, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	keys := []string{cacheKey(userID), generationKey(userID)}
	stored, err := setIfGeneration.Run(ctx, r.client, keys, gen, data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if stored == 0 {
		return ErrStaleGeneration
	}
	return nil
}

// Invalidate drops the listing and moves the generation forward in one
// transaction.
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func generationKey(userID string) string {
	return fmt.Sprintf("cart-gen:%s", userID)
}
