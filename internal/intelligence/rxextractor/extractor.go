package rxextractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// Core data structures
// ---------------------------------------------------------------------------

// ExtractionResult is the output of a single Extract call.
type ExtractionResult struct {
	Records          []medication.MedicationRecord `json:"records"`
	RecordCount      int                           `json:"record_count"`
	QualityScore     float64                       `json:"quality_score"`
	Degraded         bool                          `json:"degraded"`
	DegradedReason   string                        `json:"degraded_reason,omitempty"`
	ProcessingTimeMs int64                         `json:"processing_time_ms"`
	TextLength       int                           `json:"text_length"`
}

// Per-strategy confidence assigned to every candidate a strategy emits.
const (
	lexiconConfidence = 0.8
	patternConfidence = 0.7
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ExtractorConfig holds tuneable parameters for the extraction pipeline.
type ExtractorConfig struct {
	MinQualityScore  float64 `json:"min_quality_score" yaml:"min_quality_score"`
	MaxTextLength    int     `json:"max_text_length" yaml:"max_text_length"`
	BatchConcurrency int     `json:"batch_concurrency" yaml:"batch_concurrency"`
	StrictNameMatch  bool    `json:"strict_name_match" yaml:"strict_name_match"`
	EnableLexicon    bool    `json:"enable_lexicon" yaml:"enable_lexicon"`
	EnablePatterns   bool    `json:"enable_patterns" yaml:"enable_patterns"`
}

// DefaultExtractorConfig returns production-ready defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinQualityScore:  50,
		MaxTextLength:    100000,
		BatchConcurrency: 4,
		StrictNameMatch:  false,
		EnableLexicon:    true,
		EnablePatterns:   true,
	}
}

// ---------------------------------------------------------------------------
// Dependency interfaces
// ---------------------------------------------------------------------------

// Metrics records operational telemetry.
type Metrics interface {
	RecordExtraction(ctx context.Context, recordCount int, durationMs float64, degraded bool)
	RecordDegraded(ctx context.Context, reason string)
}

// Logger is a minimal structured logger.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// ---------------------------------------------------------------------------
// Extractor interface
// ---------------------------------------------------------------------------

// Extractor is the top-level API for prescription-text extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (*ExtractionResult, error)
	ExtractBatch(ctx context.Context, texts []string) ([]*ExtractionResult, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type extractorImpl struct {
	medLex  *MedicationLexicon
	freqLex *FrequencyLexicon
	merger  *Merger
	config  ExtractorConfig
	metrics Metrics
	logger  Logger
}

// NewExtractor constructs a fully-wired extractor.
func NewExtractor(
	medLex *MedicationLexicon,
	freqLex *FrequencyLexicon,
	config ExtractorConfig,
	metrics Metrics,
	logger Logger,
) (Extractor, error) {
	if medLex == nil || medLex.Size() == 0 {
		return nil, errors.InvalidParam("medication lexicon is required")
	}
	if freqLex == nil {
		return nil, errors.InvalidParam("frequency lexicon is required")
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}

	return &extractorImpl{
		medLex:  medLex,
		freqLex: freqLex,
		merger:  NewMerger(MergerConfig{StrictNameMatch: config.StrictNameMatch}),
		config:  config,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// ---------------------------------------------------------------------------
// Extract
// ---------------------------------------------------------------------------

func (e *extractorImpl) Extract(ctx context.Context, text string) (*ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return &ExtractionResult{
			Records:        []medication.MedicationRecord{},
			Degraded:       true,
			DegradedReason: "empty input text",
		}, nil
	}

	start := time.Now()

	// 1. Quality gate on the raw text.  Degraded input still flows through
	// extraction; the flag tells callers not to trust silence as absence.
	quality := ScoreTextQuality(text)
	degraded := false
	reason := ""
	switch {
	case !IsPrescriptionText(text):
		degraded = true
		reason = "text does not look like a prescription"
	case quality < e.config.MinQualityScore:
		degraded = true
		reason = fmt.Sprintf("text quality %.0f below threshold %.0f", quality, e.config.MinQualityScore)
	}

	// 2. Normalise and bound the working text.
	cleaned := Normalize(text)
	if len(cleaned) > e.config.MaxTextLength {
		cleaned = cleaned[:e.config.MaxTextLength]
	}

	// 3. Run both strategies over the same cleaned text.
	var candidates []*medication.MedicationCandidate
	if e.config.EnableLexicon {
		candidates = append(candidates, e.extractByLexicon(cleaned)...)
	}
	if e.config.EnablePatterns {
		candidates = append(candidates, e.extractByPattern(cleaned)...)
	}

	// 4. Collapse to one record per medication.
	records := e.merger.Merge(candidates)
	if records == nil {
		records = []medication.MedicationRecord{}
	}

	elapsed := time.Since(start).Milliseconds()
	e.metrics.RecordExtraction(ctx, len(records), float64(elapsed), degraded)
	if degraded {
		e.metrics.RecordDegraded(ctx, reason)
		e.logger.Warn("extracting from degraded prescription text",
			"reason", reason, "quality_score", quality, "records", len(records))
	} else {
		e.logger.Debug("extraction complete",
			"records", len(records), "quality_score", quality, "duration_ms", elapsed)
	}

	return &ExtractionResult{
		Records:          records,
		RecordCount:      len(records),
		QualityScore:     quality,
		Degraded:         degraded,
		DegradedReason:   reason,
		ProcessingTimeMs: elapsed,
		TextLength:       len(cleaned),
	}, nil
}

// ---------------------------------------------------------------------------
// ExtractBatch
// ---------------------------------------------------------------------------

func (e *extractorImpl) ExtractBatch(ctx context.Context, texts []string) ([]*ExtractionResult, error) {
	if len(texts) == 0 {
		return []*ExtractionResult{}, nil
	}

	results := make([]*ExtractionResult, len(texts))
	errs := make([]error, len(texts))

	concurrency := e.config.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, txt := range texts {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := e.Extract(ctx, t)
			results[idx] = res
			errs[idx] = err
		}(i, txt)
	}
	wg.Wait()

	// If every single extraction failed, return the first error.
	allFailed := true
	for i := range results {
		if errs[i] == nil {
			allFailed = false
		} else if results[i] == nil {
			results[i] = &ExtractionResult{Records: []medication.MedicationRecord{}}
		}
	}
	if allFailed {
		return results, fmt.Errorf("all %d extractions failed; first error: %w", len(texts), errs[0])
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Lexicon-matching strategy
// ---------------------------------------------------------------------------

// extractByLexicon walks the medication lexicon in order and emits at most
// one candidate per drug: the first variant contained in the text wins, with
// a fuzzy token scan as fallback for OCR-garbled names.  A drug whose
// variants match neither way is skipped silently.
func (e *extractorImpl) extractByLexicon(text string) []*medication.MedicationCandidate {
	lower := strings.ToLower(text)
	tokens := tokenise(text)

	var candidates []*medication.MedicationCandidate
	for _, entry := range e.medLex.Entries() {
		mention := ""
		for _, variant := range entry.Variants {
			if strings.Contains(lower, variant) {
				mention = variant
				break
			}
		}
		if mention == "" {
		fuzzy:
			for _, variant := range entry.Variants {
				if strings.Contains(variant, " ") {
					// Fuzzy matching is word-by-word; multi-word
					// variants are covered by containment only.
					continue
				}
				for _, tok := range tokens {
					if fuzzyMatch(tok.text, variant) {
						mention = tok.text
						break fuzzy
					}
				}
			}
		}
		if mention == "" {
			continue
		}

		freq := frequencyNear(text, mention, e.freqLex)
		candidates = append(candidates, &medication.MedicationCandidate{
			Name:         titleCase(entry.Canonical),
			Dosage:       dosageNear(text, mention),
			Frequency:    freq,
			Duration:     durationNear(text, mention),
			Instructions: ExpandInstructions(freq),
			Confidence:   lexiconConfidence,
			Source:       medication.SourceRuleBased,
		})
	}
	return candidates
}

// ---------------------------------------------------------------------------
// No-op dependency fallbacks
// ---------------------------------------------------------------------------

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) RecordExtraction(context.Context, int, float64, bool) {}
func (noopMetrics) RecordDegraded(context.Context, string)         {}
