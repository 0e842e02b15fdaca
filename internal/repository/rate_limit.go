package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pool_chat/pkg/logger"
)

type RateLimitRepository interface {
	// Allow counts a hit for the key and reports whether it stays within
	// limit for the current window. Remaining may be negative once over.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error)
}

type rateLimitRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewRateLimitRepository(rdb *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{rdb: rdb, log: log}
}

func (r *rateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit counter", "error", err)
		return false, 0, err
	}

	if count == 1 {
		r.rdb.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), int64(limit) - count, nil
}
