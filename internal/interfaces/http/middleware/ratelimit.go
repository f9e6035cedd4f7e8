package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Limiter abstraction
// ─────────────────────────────────────────────────────────────────────────────

// RateLimitInfo describes the state of a caller's budget after a decision.
type RateLimitInfo struct {
	// Limit is the budget ceiling exposed to the caller.
	Limit int
	// Remaining is how many requests the caller has left.
	Remaining int
	// ResetAt is when the budget is fully replenished.
	ResetAt time.Time
}

// RateLimiter makes allow/deny decisions per caller key.  The in-memory
// token bucket and the Redis fixed window both implement it; the middleware
// does not care which one it is handed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, RateLimitInfo)
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory token bucket
// ─────────────────────────────────────────────────────────────────────────────

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucketLimiter is a per-key token bucket held in process memory.
// Suitable for single-instance deployments; multi-instance deployments
// should use the Redis-backed limiter so all instances share one budget.
type TokenBucketLimiter struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTokenBucketLimiter creates a limiter refilling at rate tokens per second
// up to burst.  A background sweep drops buckets idle long enough to be full
// again, bounding memory under churning keys; Stop halts the sweep.
func NewTokenBucketLimiter(rate float64, burst int, cleanupInterval time.Duration) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	l := &TokenBucketLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

// Allow consumes one token from key's bucket if available.
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, RateLimitInfo) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastRefill: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens += elapsed * l.rate
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastRefill = now
	}

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	secondsToFull := (float64(l.burst) - b.tokens) / l.rate
	info := RateLimitInfo{
		Limit:     l.burst,
		Remaining: int(b.tokens),
		ResetAt:   now.Add(time.Duration(secondsToFull * float64(time.Second))),
	}
	return allowed, info
}

// BucketCount reports how many keys currently hold a bucket.
func (l *TokenBucketLimiter) BucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop halts the cleanup sweep.  Idempotent.
func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *TokenBucketLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup drops buckets idle long enough to have refilled completely; a
// returning caller gets a fresh full bucket, so nothing is lost.
func (l *TokenBucketLimiter) cleanup() {
	idle := time.Duration(float64(l.burst)/l.rate*float64(time.Second)) + time.Minute

	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Key extraction
// ─────────────────────────────────────────────────────────────────────────────

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey keys the budget by client IP, honoring the proxy headers gin
// is configured to trust.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// UserKey keys the budget by the scoped user when present, falling back to
// client IP for unscoped requests.  Place the middleware after UserScope.
func UserKey(c *gin.Context) string {
	if id, ok := UserIDFromGin(c); ok {
		return "user:" + string(id)
	}
	return "ip:" + c.ClientIP()
}

// CompositeKey joins several key funcs with ":" so budgets can be scoped,
// for example, per user per route.
func CompositeKey(funcs ...KeyFunc) KeyFunc {
	return func(c *gin.Context) string {
		key := ""
		for i, fn := range funcs {
			if i > 0 {
				key += ":"
			}
			key += fn(c)
		}
		return key
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// RateLimitConfig controls the rate limit middleware.
type RateLimitConfig struct {
	// KeyFunc extracts the budget key.  Nil defaults to client IP.
	KeyFunc KeyFunc

	// SkipPaths are exact request paths exempt from limiting.
	SkipPaths []string
}

// DefaultRateLimitConfig exempts the probe endpoints and keys by client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		KeyFunc:   ClientIPKey,
		SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
	}
}

// RateLimit returns middleware enforcing the limiter's budget.  Every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; a rejected request additionally gets Retry-After and a
// 429 envelope.
func RateLimit(limiter RateLimiter, config RateLimitConfig) gin.HandlerFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		allowed, info := limiter.Allow(c.Request.Context(), keyFunc(c))

		header := c.Writer.Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		header.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		header.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			header.Set("Retry-After", strconv.Itoa(retryAfter))
			abortWithError(c, http.StatusTooManyRequests,
				pkgerrors.ErrCodeTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
