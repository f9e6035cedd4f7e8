package prescription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// defaultExtractionTTL bounds how long a cached extraction stays valid.  The
// extractor is deterministic for a given text, so the TTL exists to reap
// dead entries and to pick up lexicon updates, not to bound staleness.
const defaultExtractionTTL = 24 * time.Hour

// ExtractionCache is the subset of the platform cache the decorator needs.
// Satisfied by the redis cache adapter.
type ExtractionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheMetrics records cache hit/miss telemetry.  Satisfied by the
// intelligence metrics sink.
type CacheMetrics interface {
	RecordCacheAccess(ctx context.Context, hit bool, cacheName string)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordCacheAccess(context.Context, bool, string) {}

// extractionCacheName labels this cache's series in the metrics sink.
const extractionCacheName = "extraction"

// CachedExtractor caches extraction results keyed by a content hash of the
// prescription text.  Re-uploads of the same scan, and retried requests,
// skip the extraction pipeline entirely.  The cache is strictly an
// accelerator: every cache failure degrades to a plain extraction.
type CachedExtractor struct {
	inner   rxextractor.Extractor
	cache   ExtractionCache
	ttl     time.Duration
	metrics CacheMetrics
	logger  logging.Logger
}

var _ rxextractor.Extractor = (*CachedExtractor)(nil)

// CachedExtractorOption customises the decorator.
type CachedExtractorOption func(*CachedExtractor)

// WithCacheMetrics records hit/miss telemetry into the given sink.
func WithCacheMetrics(m CacheMetrics) CachedExtractorOption {
	return func(e *CachedExtractor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewCachedExtractor wraps inner with result caching.  A non-positive ttl
// falls back to the default.
func NewCachedExtractor(inner rxextractor.Extractor, cache ExtractionCache, ttl time.Duration, logger logging.Logger, opts ...CachedExtractorOption) *CachedExtractor {
	if ttl <= 0 {
		ttl = defaultExtractionTTL
	}
	e := &CachedExtractor{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		metrics: noopCacheMetrics{},
		logger:  logger.Named("extraction-cache"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// extractionKey hashes the raw text so the cache key stays bounded and
// carries no prescription content.
func extractionKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "extract:" + hex.EncodeToString(sum[:])
}

func (e *CachedExtractor) Extract(ctx context.Context, text string) (*rxextractor.ExtractionResult, error) {
	key := extractionKey(text)

	var cached rxextractor.ExtractionResult
	if err := e.cache.Get(ctx, key, &cached); err == nil {
		e.metrics.RecordCacheAccess(ctx, true, extractionCacheName)
		e.logger.Debug("Extraction served from cache",
			logging.Int("record_count", cached.RecordCount))
		return &cached, nil
	}
	e.metrics.RecordCacheAccess(ctx, false, extractionCacheName)

	result, err := e.inner.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, result, e.ttl); err != nil {
		e.logger.Warn("Failed to cache extraction result", logging.Err(err))
	}
	return result, nil
}

// ExtractBatch runs each text through the caching Extract path, so a batch
// with repeated or previously seen texts only pays for the new ones.  The
// error policy matches the plain extractor: per-text failures yield empty
// results, and the call fails only when every text failed.
func (e *CachedExtractor) ExtractBatch(ctx context.Context, texts []string) ([]*rxextractor.ExtractionResult, error) {
	if len(texts) == 0 {
		return []*rxextractor.ExtractionResult{}, nil
	}

	results := make([]*rxextractor.ExtractionResult, len(texts))
	errs := make([]error, len(texts))
	for i, txt := range texts {
		results[i], errs[i] = e.Extract(ctx, txt)
	}

	allFailed := true
	for i := range results {
		if errs[i] == nil {
			allFailed = false
		} else if results[i] == nil {
			results[i] = &rxextractor.ExtractionResult{Records: []medtypes.MedicationRecord{}}
		}
	}
	if allFailed {
		return results, fmt.Errorf("all %d extractions failed; first error: %w", len(texts), errs[0])
	}
	return results, nil
}
