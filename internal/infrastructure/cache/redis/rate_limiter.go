// internal/infrastructure/cache/redis/rate_limiter.go
package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter - часовой лимит алертов на пользователя поверх Redis.
// Счетчик живет в окне window и разделяется всеми инстансами движка.
type RateLimiter struct {
	cache  *Cache
	limit  int
	window time.Duration
}

// NewRateLimiter создает рейт-лимитер
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		limit:  limit,
		window: window,
	}
}

// Allow регистрирует попытку и сообщает, не превышен ли лимит
func (rl *RateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("alerts:%d", userID)
	allowed, _, err := rl.cache.CheckRateLimit(ctx, key, rl.limit, rl.window)
	if err != nil {
		return false, fmt.Errorf("rate limit check failed for user %d: %w", userID, err)
	}
	return allowed, nil
}
