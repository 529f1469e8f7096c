package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-gate/internal/status"
)

// RateLimiter throttles scan attempts per caller using a fixed window
// counter in Redis. It is an abuse shield only; validation correctness
// never depends on it, so Redis failures fail open.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow returns status.ErrRateLimited once the caller exceeds the
// configured attempts inside the current window.
func (r *RateLimiter) Allow(ctx context.Context, callerID string) error {
	if r.redis == nil || r.limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("ratelimit:scan:%s", callerID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limiter unavailable, failing open", "error", err)
		return nil
	}

	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}

	if count > int64(r.limit) {
		return status.ErrRateLimited
	}

	return nil
}
