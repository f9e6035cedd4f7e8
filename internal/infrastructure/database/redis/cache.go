package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// ErrCacheMiss is returned by Get and GetOrSet when the key is absent or
// holds the null marker.  Callers compare against it directly.
var ErrCacheMiss = pkgerrors.New(pkgerrors.ErrCodeCacheError, "cache miss")

// nullMarker is stored in place of a value when a loader legitimately
// produced nothing, so repeated lookups for absent data do not hammer the
// backing store.
const nullMarker = "__null__"

// ─────────────────────────────────────────────────────────────────────────────
// Interface
// ─────────────────────────────────────────────────────────────────────────────

// Cache is a JSON object cache over Redis.  Keys are namespaced with the
// configured prefix; values round-trip through the configured serializer.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet returns the cached value or runs loader to produce and
	// cache it.  Concurrent misses for the same key share one loader call.
	// A nil loader result is cached as a null marker and reported as
	// ErrCacheMiss.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error

	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, value int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// Serializer converts cached values to and from bytes.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (s *jsonSerializer) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *jsonSerializer) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Implementation
// ─────────────────────────────────────────────────────────────────────────────

type redisCache struct {
	client       *Client
	logger       logging.Logger
	prefix       string
	defaultTTL   time.Duration
	serializer   Serializer
	nullCacheTTL time.Duration
	singleflight singleflight.Group
}

// CacheOption customises a cache built by NewRedisCache.
type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

func WithSerializer(s Serializer) CacheOption {
	return func(c *redisCache) { c.serializer = s }
}

func WithNullCacheTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.nullCacheTTL = ttl }
}

// NewRedisCache builds the platform cache over client.
func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{
		client:       client,
		logger:       log,
		prefix:       "medrx:",
		defaultTTL:   15 * time.Minute,
		serializer:   &jsonSerializer{},
		nullCacheTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expirations by +/- 10% so keys written together do not
// expire together.
func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// setRaw writes already-serialized bytes.  A zero ttl falls back to the
// default.
func (c *redisCache) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to set cache value")
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to get from cache")
	}
	if string(data) == nullMarker {
		return ErrCacheMiss
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeSerialization, "failed to unmarshal cached value")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if value == nil {
		return c.setRaw(ctx, key, []byte(nullMarker), c.nullCacheTTL)
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeSerialization, "failed to marshal cache value")
	}
	return c.setRaw(ctx, key, data, ttl)
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to delete cache keys")
	}
	return nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	val, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to check cache key")
	}
	return val > 0, nil
}

// GetOrSet degrades rather than fails: when the cache itself is unreachable
// the loader still runs, so a sick Redis never takes reads down with it.
func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if err != ErrCacheMiss {
		c.logger.Warn("Cache read failed, falling through to loader",
			logging.String("key", key), logging.Err(err))
	}

	raw, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		// Re-check under the flight; another replica may have filled the
		// key while this call queued.
		if data, getErr := c.client.Get(ctx, c.fullKey(key)).Bytes(); getErr == nil {
			if string(data) == nullMarker {
				return nil, ErrCacheMiss
			}
			return data, nil
		}

		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			if setErr := c.setRaw(ctx, key, []byte(nullMarker), c.nullCacheTTL); setErr != nil {
				c.logger.Warn("Failed to cache null marker",
					logging.String("key", key), logging.Err(setErr))
			}
			return nil, ErrCacheMiss
		}

		data, marshalErr := c.serializer.Marshal(v)
		if marshalErr != nil {
			return nil, pkgerrors.Wrap(marshalErr, pkgerrors.ErrCodeSerialization, "failed to marshal loaded value")
		}
		if setErr := c.setRaw(ctx, key, data, ttl); setErr != nil {
			c.logger.Warn("Failed to populate cache",
				logging.String("key", key), logging.Err(setErr))
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return c.serializer.Unmarshal(raw.([]byte), dest)
}

func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.fullKey(prefix) + "*"
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to scan cache keys")
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to delete cache keys")
			}
			deleted += int64(len(keys))
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

func (c *redisCache) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Incr(ctx, c.fullKey(key)).Result()
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to increment counter")
	}
	return val, nil
}

func (c *redisCache) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	val, err := c.client.IncrBy(ctx, c.fullKey(key), value).Result()
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to increment counter")
	}
	return val, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, c.fullKey(key), ttl).Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to set key expiration")
	}
	return nil
}

func (c *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	val, err := c.client.TTL(ctx, c.fullKey(key)).Result()
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to read key expiration")
	}
	return val, nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
