package middleware

import (
	"context"
	"strconv"
	"time"

	redisinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
)

// redisLimiterPrefix namespaces limiter keys away from cache and lock keys.
const redisLimiterPrefix = "ratelimit:"

// RedisWindowLimiter is a fixed-window counter in Redis, shared by every
// instance behind the same load balancer.  Keys are stamped with the window
// start, so a window's counter simply expires instead of being reset.
//
// A Redis failure fails open: limiting protects capacity, and refusing all
// traffic because the limiter store is down would invert that.
type RedisWindowLimiter struct {
	client *redisinfra.Client
	limit  int
	window time.Duration
	logger logging.Logger
}

// NewRedisWindowLimiter creates a limiter allowing limit requests per window
// per key.
func NewRedisWindowLimiter(client *redisinfra.Client, limit int, window time.Duration, logger logging.Logger) *RedisWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisWindowLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger.Named("ratelimit"),
	}
}

// Allow increments key's counter for the current window and compares it to
// the limit.
func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, RateLimitInfo) {
	now := time.Now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	redisKey := redisLimiterPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// TTL only on first increment; the key dies shortly after its window.
	pipe.ExpireNX(ctx, redisKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("Rate limit check failed, allowing request",
			logging.Err(err),
		)
		return true, RateLimitInfo{Limit: l.limit, Remaining: l.limit, ResetAt: resetAt}
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= l.limit, RateLimitInfo{
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
