// Package common provides the shared plumbing of the intelligence layer: a
// generic batch-processing engine with retry, circuit-breaking and
// back-pressure, the ExtractionMetrics telemetry abstraction with Prometheus,
// in-memory and no-op implementations, and the OCREngine contract that
// decouples scan intake from any concrete OCR backend.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by validation failures in this package.
var ErrInvalidInput = errors.New("invalid input")

// ---------------------------------------------------------------------------
// ImageFormat enum
// ---------------------------------------------------------------------------

// ImageFormat identifies the encoding of an uploaded prescription scan.
type ImageFormat int

const (
	FormatUnknown ImageFormat = iota
	FormatPNG
	FormatJPEG
	FormatTIFF
	FormatPDF
)

func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "PNG"
	case FormatJPEG:
		return "JPEG"
	case FormatTIFF:
		return "TIFF"
	case FormatPDF:
		return "PDF"
	default:
		return "Unknown"
	}
}

// DetectImageFormat sniffs the leading magic bytes of data and returns the
// scan format, or FormatUnknown when the signature is not recognised.
func DetectImageFormat(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// ---------------------------------------------------------------------------
// OCREngine interface
// ---------------------------------------------------------------------------

// OCREngine turns prescription scan images into raw text. Implementations
// wrap an external OCR service or binary; the extraction pipeline itself
// never touches image data.
type OCREngine interface {
	Recognize(ctx context.Context, req *OCRRequest) (*OCRResult, error)
	Healthy(ctx context.Context) error
	Close() error
}

// OCRRequest carries one scan image to the OCR engine.
type OCRRequest struct {
	ScanID    string            `json:"scan_id"`
	Image     []byte            `json:"image"`
	Format    ImageFormat       `json:"format"`
	Languages []string          `json:"languages,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the request can be sent to an engine.
func (r *OCRRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidInput)
	}
	if r.ScanID == "" {
		return fmt.Errorf("%w: scan_id is required", ErrInvalidInput)
	}
	if len(r.Image) == 0 {
		return fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	return nil
}

// OCRResult is the raw text an engine recognised in one scan.
type OCRResult struct {
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	DurationMs int64             `json:"duration_ms"`
	EngineName string            `json:"engine_name,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ---------------------------------------------------------------------------
// Logger interface
// ---------------------------------------------------------------------------

// Logger defines a structured logging interface compatible with zap or others.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger implements Logger and does nothing.
type noopLogger struct{}

func (n *noopLogger) Info(string, ...interface{})  {}
func (n *noopLogger) Warn(string, ...interface{})  {}
func (n *noopLogger) Debug(string, ...interface{}) {}
func (n *noopLogger) Error(string, ...interface{}) {}

// NewNoopLogger returns a Logger that discards all logs.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
