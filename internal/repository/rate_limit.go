package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"project_portal/pkg/logger"
)

type RateLimitRepository interface {
	// Increment counts one hit in the current window and returns the running total.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return 0, err
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			r.log.Warn("Failed to set rate limit window", "error", err, "key", key)
		}
	}

	return count, nil
}

func (r *rateLimitRepository) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		r.log.Error("Failed to reset rate limit", "error", err, "key", key)
		return err
	}
	return nil
}
