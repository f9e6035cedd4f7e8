package common

import (
	"container/heap"
	"context"
	stdliberrors "errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrShutdown     = stdliberrors.New("batch processor is shutting down")
	ErrBackpressure = stdliberrors.New("backpressure threshold exceeded")
	ErrCircuitOpen  = stdliberrors.New("circuit breaker is open")
)

// ---------------------------------------------------------------------------
// ItemStatus enumeration
// ---------------------------------------------------------------------------

// ItemStatus is the outcome of processing a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess   ItemStatus = iota // completed without error
	ItemStatusFailed                      // returned a non-context error
	ItemStatusTimeout                     // exceeded its timeout
	ItemStatusCancelled                   // cancelled via context or shutdown
)

// String returns the human-readable representation of an ItemStatus.
func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// ProcessFunc processes a single item of a batch.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// PrioritizedItem wraps an item with a scheduling priority. Higher Priority
// values are dispatched first.
type PrioritizedItem[T any] struct {
	Item     T   `json:"item"`
	Priority int `json:"priority"`
}

// ItemResult holds the outcome of one item within a batch run.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates the outcomes of a full batch run. The four status
// counts are disjoint: SuccessCount + FailureCount + TimeoutCount +
// CancelledCount == TotalCount.
type BatchResult[R any] struct {
	Results           []*ItemResult[R] `json:"results"`
	TotalCount        int              `json:"total_count"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	TimeoutCount      int              `json:"timeout_count"`
	CancelledCount    int              `json:"cancelled_count"`
	TotalDurationMs   float64          `json:"total_duration_ms"`
	AvgItemDurationMs float64          `json:"avg_item_duration_ms"`
}

// ---------------------------------------------------------------------------
// BatchProcessor interface
// ---------------------------------------------------------------------------

// BatchProcessor is a generic concurrent batch engine with per-item timeout,
// retry, circuit-breaking and back-pressure. The prescription pipeline uses
// it to digitize multiple scans in one call.
type BatchProcessor[T, R any] interface {
	// Process runs fn over every item, bounded by the configured concurrency
	// limit. Results come back in input order.
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error)

	// ProcessWithPriority behaves like Process but dispatches higher-priority
	// items first.
	ProcessWithPriority(ctx context.Context, items []PrioritizedItem[T], fn ProcessFunc[T, R]) (*BatchResult[R], error)

	// Shutdown drains in-flight work. After it returns (or ctx expires) new
	// batches are rejected with ErrShutdown.
	Shutdown(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// RetryPolicy
// ---------------------------------------------------------------------------

// RetryPolicy governs how failed items are retried.
type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	RetryableErrors   []error       `json:"-" yaml:"-"`
}

// shouldRetry reports whether err qualifies for another attempt. An empty
// RetryableErrors list means every error is retryable.
func shouldRetry(err error, policy *RetryPolicy) bool {
	if policy == nil || err == nil {
		return false
	}
	if len(policy.RetryableErrors) == 0 {
		return true
	}
	for _, re := range policy.RetryableErrors {
		if stdliberrors.Is(err, re) {
			return true
		}
	}
	return false
}

// calculateBackoff returns the delay before the attempt-th retry:
// exponential growth with ±25% jitter, capped at MaxBackoff.
func calculateBackoff(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil || policy.InitialBackoff <= 0 {
		return 0
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	base := float64(policy.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if policy.MaxBackoff > 0 && base > float64(policy.MaxBackoff) {
		base = float64(policy.MaxBackoff)
	}
	jitter := base * 0.25 * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// ---------------------------------------------------------------------------
// Circuit-breaker (lightweight, embedded)
// ---------------------------------------------------------------------------

const (
	cbStateClosed   int32 = 0
	cbStateOpen     int32 = 1
	cbStateHalfOpen int32 = 2
)

// circuitBreaker trips after a run of consecutive failures, then allows a
// single probe through after resetDuration.
type circuitBreaker struct {
	name             string
	state            atomic.Int32
	consecutiveFails atomic.Int32
	threshold        int32
	resetDuration    time.Duration
	lastOpenTime     atomic.Int64 // unix-nano
	halfOpenPermits  atomic.Int32
	logger           Logger
	metrics          ExtractionMetrics
}

func newCircuitBreaker(name string, threshold int, duration time.Duration, logger Logger, metrics ExtractionMetrics) *circuitBreaker {
	cb := &circuitBreaker{
		name:          name,
		threshold:     int32(threshold),
		resetDuration: duration,
		logger:        logger,
		metrics:       metrics,
	}
	cb.state.Store(cbStateClosed)
	return cb
}

// allow reports whether a request may pass through the breaker.
func (cb *circuitBreaker) allow() bool {
	if cb == nil || cb.threshold <= 0 {
		return true // disabled
	}
	st := cb.state.Load()
	switch st {
	case cbStateClosed:
		return true
	case cbStateOpen:
		openedAt := cb.lastOpenTime.Load()
		if time.Since(time.Unix(0, openedAt)) >= cb.resetDuration {
			if cb.state.CompareAndSwap(cbStateOpen, cbStateHalfOpen) {
				cb.halfOpenPermits.Store(1)
				cb.logStateChange("OPEN", "HALF_OPEN")
			}
			// single probe while half-open
			return cb.halfOpenPermits.Add(-1) >= 0
		}
		return false
	case cbStateHalfOpen:
		return cb.halfOpenPermits.Add(-1) >= 0
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	if cb == nil || cb.threshold <= 0 {
		return
	}
	cb.consecutiveFails.Store(0)
	if cb.state.CompareAndSwap(cbStateHalfOpen, cbStateClosed) {
		cb.logStateChange("HALF_OPEN", "CLOSED")
	}
}

func (cb *circuitBreaker) recordFailure() {
	if cb == nil || cb.threshold <= 0 {
		return
	}
	fails := cb.consecutiveFails.Add(1)

	st := cb.state.Load()
	switch st {
	case cbStateClosed:
		if fails >= cb.threshold {
			if cb.state.CompareAndSwap(cbStateClosed, cbStateOpen) {
				cb.lastOpenTime.Store(time.Now().UnixNano())
				cb.logStateChange("CLOSED", "OPEN")
			}
		}
	case cbStateHalfOpen:
		// probe failed, reopen
		if cb.state.CompareAndSwap(cbStateHalfOpen, cbStateOpen) {
			cb.lastOpenTime.Store(time.Now().UnixNano())
			cb.logStateChange("HALF_OPEN", "OPEN")
		}
	}
}

func (cb *circuitBreaker) logStateChange(from, to string) {
	if cb.logger != nil {
		cb.logger.Info("circuit-breaker state change", "name", cb.name, "from", from, "to", to)
	}
	if cb.metrics != nil {
		cb.metrics.RecordCircuitBreakerStateChange(context.Background(), cb.name, from, to)
	}
}

func (cb *circuitBreaker) currentState() int32 {
	if cb == nil {
		return cbStateClosed
	}
	return cb.state.Load()
}

// ---------------------------------------------------------------------------
// BatchOption functional options
// ---------------------------------------------------------------------------

// batchConfig holds all tunables for a batchProcessor.
type batchConfig struct {
	name                  string
	maxConcurrency        int
	itemTimeout           time.Duration
	batchTimeout          time.Duration
	retryPolicy           *RetryPolicy
	cbThreshold           int
	cbDuration            time.Duration
	backpressureThreshold int
	metrics               ExtractionMetrics
	logger                Logger
}

func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		name:                  "batch-processor",
		maxConcurrency:        runtime.NumCPU(),
		itemTimeout:           30 * time.Second,
		batchTimeout:          5 * time.Minute,
		retryPolicy:           nil,
		cbThreshold:           0, // disabled
		cbDuration:            0,
		backpressureThreshold: 0, // disabled
		metrics:               nil,
		logger:                nil,
	}
}

// BatchOption configures a batchProcessor.
type BatchOption func(*batchConfig)

// WithBatchName sets the name reported in batch metrics.
func WithBatchName(name string) BatchOption {
	return func(c *batchConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMaxConcurrency sets the maximum number of items processed concurrently.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout sets the per-item processing timeout.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithBatchTimeout sets the overall batch deadline.
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithRetryPolicy enables retries with exponential back-off starting at
// backoff and capped at 16x.
func WithRetryPolicy(maxRetries int, backoff time.Duration) BatchOption {
	return func(c *batchConfig) {
		if maxRetries > 0 {
			c.retryPolicy = &RetryPolicy{
				MaxRetries:        maxRetries,
				InitialBackoff:    backoff,
				MaxBackoff:        backoff * 16,
				BackoffMultiplier: 2.0,
			}
		}
	}
}

// WithRetryPolicyFull installs a complete retry policy.
func WithRetryPolicyFull(policy *RetryPolicy) BatchOption {
	return func(c *batchConfig) {
		c.retryPolicy = policy
	}
}

// WithCircuitBreaker enables the embedded circuit-breaker: it opens after
// threshold consecutive failures and half-opens after duration.
func WithCircuitBreaker(threshold int, duration time.Duration) BatchOption {
	return func(c *batchConfig) {
		if threshold > 0 && duration > 0 {
			c.cbThreshold = threshold
			c.cbDuration = duration
		}
	}
}

// WithBackpressureThreshold sets the maximum pending-item count before new
// batches are rejected with ErrBackpressure. Zero disables the check.
func WithBackpressureThreshold(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.backpressureThreshold = n
		}
	}
}

// WithBatchMetrics injects a metrics collector.
func WithBatchMetrics(m ExtractionMetrics) BatchOption {
	return func(c *batchConfig) {
		c.metrics = m
	}
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l Logger) BatchOption {
	return func(c *batchConfig) {
		c.logger = l
	}
}

// ---------------------------------------------------------------------------
// batchProcessor implementation
// ---------------------------------------------------------------------------

type batchProcessor[T, R any] struct {
	cfg     *batchConfig
	cb      *circuitBreaker
	metrics ExtractionMetrics
	logger  Logger

	// shutdown coordination
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	isShutdown   atomic.Bool
	activeWg     sync.WaitGroup

	// back-pressure: items currently queued or in-flight
	pendingCount atomic.Int64
}

// NewBatchProcessor creates a BatchProcessor with the supplied options.
func NewBatchProcessor[T, R any](opts ...BatchOption) BatchProcessor[T, R] {
	cfg := defaultBatchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewNoopExtractionMetrics()
	}
	if cfg.logger == nil {
		cfg.logger = NewNoopLogger()
	}
	bp := &batchProcessor[T, R]{
		cfg:        cfg,
		metrics:    cfg.metrics,
		logger:     cfg.logger,
		shutdownCh: make(chan struct{}),
	}
	if cfg.cbThreshold > 0 && cfg.cbDuration > 0 {
		bp.cb = newCircuitBreaker(cfg.name, cfg.cbThreshold, cfg.cbDuration, cfg.logger, cfg.metrics)
	}
	return bp
}

// ---------------------------------------------------------------------------
// Process
// ---------------------------------------------------------------------------

func (bp *batchProcessor[T, R]) Process(
	ctx context.Context,
	items []T,
	fn ProcessFunc[T, R],
) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	if bp.isShutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &BatchResult[R]{
			Results:    []*ItemResult[R]{},
			TotalCount: 0,
		}, nil
	}

	if err := bp.admit(n); err != nil {
		return nil, err
	}
	defer bp.release(n)

	batchStart := time.Now()

	batchCtx, batchCancel := context.WithTimeout(ctx, bp.cfg.batchTimeout)
	defer batchCancel()

	resultCh := make(chan *ItemResult[R], n)

	// Buffered-channel semaphore bounds concurrency.
	sem := make(chan struct{}, bp.cfg.maxConcurrency)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-batchCtx.Done():
				resultCh <- &ItemResult[R]{
					Index:  idx,
					Error:  batchCtx.Err(),
					Status: classifyCtxError(batchCtx.Err()),
				}
				return
			}

			resultCh <- bp.processOneItem(batchCtx, idx, item, fn)
		}(i, items[i])
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*ItemResult[R], 0, n)
	for ir := range resultCh {
		results = append(results, ir)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	br := bp.buildBatchResult(results, time.Since(batchStart))
	bp.recordBatch(ctx, br)
	return br, nil
}

// ---------------------------------------------------------------------------
// ProcessWithPriority
// ---------------------------------------------------------------------------

func (bp *batchProcessor[T, R]) ProcessWithPriority(
	ctx context.Context,
	items []PrioritizedItem[T],
	fn ProcessFunc[T, R],
) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	if bp.isShutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &BatchResult[R]{
			Results:    []*ItemResult[R]{},
			TotalCount: 0,
		}, nil
	}

	if err := bp.admit(n); err != nil {
		return nil, err
	}
	defer bp.release(n)

	batchStart := time.Now()
	batchCtx, batchCancel := context.WithTimeout(ctx, bp.cfg.batchTimeout)
	defer batchCancel()

	pq := make(priorityQueue[T], n)
	for i, pi := range items {
		pq[i] = &pqItem[T]{
			value:         pi.Item,
			originalIndex: i,
			priority:      pi.Priority,
		}
	}
	heap.Init(&pq)

	resultCh := make(chan *ItemResult[R], n)
	sem := make(chan struct{}, bp.cfg.maxConcurrency)

	var wg sync.WaitGroup

	// The semaphore is acquired here in the dispatch loop, not inside the
	// worker goroutine, so the highest-priority item is the one that blocks
	// waiting for a slot.
	for pq.Len() > 0 {
		it := heap.Pop(&pq).(*pqItem[T])
		wg.Add(1)

		select {
		case sem <- struct{}{}:
		case <-batchCtx.Done():
			wg.Done()
			resultCh <- &ItemResult[R]{
				Index:  it.originalIndex,
				Error:  batchCtx.Err(),
				Status: classifyCtxError(batchCtx.Err()),
			}
			for pq.Len() > 0 {
				rem := heap.Pop(&pq).(*pqItem[T])
				resultCh <- &ItemResult[R]{
					Index:  rem.originalIndex,
					Error:  batchCtx.Err(),
					Status: classifyCtxError(batchCtx.Err()),
				}
			}
			goto collect
		}

		go func(idx int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			resultCh <- bp.processOneItem(batchCtx, idx, item, fn)
		}(it.originalIndex, it.value)
	}

collect:
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*ItemResult[R], 0, n)
	for ir := range resultCh {
		results = append(results, ir)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	br := bp.buildBatchResult(results, time.Since(batchStart))
	bp.recordBatch(ctx, br)
	return br, nil
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func (bp *batchProcessor[T, R]) Shutdown(ctx context.Context) error {
	bp.shutdownOnce.Do(func() {
		bp.isShutdown.Store(true)
		close(bp.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		bp.activeWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// ---------------------------------------------------------------------------
// processOneItem — per-item retry + circuit-breaker logic
// ---------------------------------------------------------------------------

func (bp *batchProcessor[T, R]) processOneItem(
	batchCtx context.Context,
	idx int,
	item T,
	fn ProcessFunc[T, R],
) *ItemResult[R] {
	itemStart := time.Now()

	if bp.cb != nil && !bp.cb.allow() {
		return &ItemResult[R]{
			Index:      idx,
			Error:      ErrCircuitOpen,
			Status:     ItemStatusFailed,
			DurationMs: msSince(itemStart),
		}
	}

	maxAttempts := 1
	if bp.cfg.retryPolicy != nil && bp.cfg.retryPolicy.MaxRetries > 0 {
		maxAttempts = 1 + bp.cfg.retryPolicy.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// back-off before each retry, never before the first attempt
		if attempt > 0 {
			delay := calculateBackoff(attempt-1, bp.cfg.retryPolicy)
			if delay > 0 {
				select {
				case <-batchCtx.Done():
					return &ItemResult[R]{
						Index:      idx,
						Error:      batchCtx.Err(),
						Status:     classifyCtxError(batchCtx.Err()),
						DurationMs: msSince(itemStart),
					}
				case <-time.After(delay):
				}
			}
		}

		itemCtx, itemCancel := context.WithTimeout(batchCtx, bp.cfg.itemTimeout)
		result, err := fn(itemCtx, item)
		itemCancel()

		if err == nil {
			if bp.cb != nil {
				bp.cb.recordSuccess()
			}
			return &ItemResult[R]{
				Index:      idx,
				Result:     result,
				Status:     ItemStatusSuccess,
				DurationMs: msSince(itemStart),
			}
		}

		lastErr = err
		if bp.cb != nil {
			bp.cb.recordFailure()
		}

		if attempt < maxAttempts-1 && shouldRetry(err, bp.cfg.retryPolicy) {
			continue
		}
		break
	}

	status := ItemStatusFailed
	if lastErr != nil {
		status = classifyError(batchCtx, lastErr)
	}

	return &ItemResult[R]{
		Index:      idx,
		Error:      lastErr,
		Status:     status,
		DurationMs: msSince(itemStart),
	}
}

// ---------------------------------------------------------------------------
// Priority queue (max-heap by Priority)
// ---------------------------------------------------------------------------

type pqItem[T any] struct {
	value         T
	originalIndex int
	priority      int
}

type priorityQueue[T any] []*pqItem[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

func (pq priorityQueue[T]) Less(i, j int) bool {
	return pq[i].priority > pq[j].priority
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue[T]) Push(x any) {
	*pq = append(*pq, x.(*pqItem[T]))
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// admit applies the back-pressure check and reserves n pending slots.
func (bp *batchProcessor[T, R]) admit(n int) error {
	if bp.cfg.backpressureThreshold > 0 {
		current := bp.pendingCount.Load()
		if current+int64(n) > int64(bp.cfg.backpressureThreshold) {
			return ErrBackpressure
		}
	}
	bp.pendingCount.Add(int64(n))
	bp.activeWg.Add(1)
	return nil
}

func (bp *batchProcessor[T, R]) release(n int) {
	bp.pendingCount.Add(-int64(n))
	bp.activeWg.Done()
}

func (bp *batchProcessor[T, R]) buildBatchResult(
	results []*ItemResult[R],
	totalDuration time.Duration,
) *BatchResult[R] {
	br := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(results),
		TotalDurationMs: float64(totalDuration.Microseconds()) / 1000.0,
	}
	var sumItemMs float64
	for _, r := range results {
		switch r.Status {
		case ItemStatusSuccess:
			br.SuccessCount++
		case ItemStatusTimeout:
			br.TimeoutCount++
		case ItemStatusCancelled:
			br.CancelledCount++
		default:
			br.FailureCount++
		}
		sumItemMs += r.DurationMs
	}
	if br.TotalCount > 0 {
		br.AvgItemDurationMs = sumItemMs / float64(br.TotalCount)
	}
	return br
}

func (bp *batchProcessor[T, R]) recordBatch(ctx context.Context, br *BatchResult[R]) {
	bp.metrics.RecordBatchProcessing(ctx, &BatchMetricParams{
		BatchName:         bp.cfg.name,
		TotalItems:        br.TotalCount,
		SuccessItems:      br.SuccessCount,
		FailedItems:       br.FailureCount,
		TimeoutItems:      br.TimeoutCount,
		CancelledItems:    br.CancelledCount,
		TotalDurationMs:   br.TotalDurationMs,
		AvgItemDurationMs: br.AvgItemDurationMs,
		MaxConcurrency:    bp.cfg.maxConcurrency,
	})
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	if err == nil {
		return ItemStatusSuccess
	}
	if stdliberrors.Is(err, context.DeadlineExceeded) {
		return ItemStatusTimeout
	}
	return ItemStatusCancelled
}

func classifyError(batchCtx context.Context, err error) ItemStatus {
	if err == nil {
		return ItemStatusSuccess
	}
	if stdliberrors.Is(err, context.DeadlineExceeded) {
		return ItemStatusTimeout
	}
	if stdliberrors.Is(err, context.Canceled) {
		return ItemStatusCancelled
	}
	// the batch deadline may also have expired underneath the item
	if batchCtx.Err() == context.DeadlineExceeded {
		return ItemStatusTimeout
	}
	if batchCtx.Err() == context.Canceled {
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
