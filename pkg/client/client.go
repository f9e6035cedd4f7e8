// Package client provides the official Go SDK for the MedRx-Intelligence
// HTTP API.  A Client authenticates every request with the caller's user ID,
// retries transient failures with exponential backoff, and exposes the API
// surface through lazily initialized sub-clients:
//
//	c, err := client.NewClient("https://medrx.example.com", "user-123")
//	if err != nil { ... }
//	resp, err := c.Prescriptions().Digitize(ctx, &medication.DigitizeRequest{
//		Text: "Amoxicillin 500mg three times daily for 7 days",
//	})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// Version is the SDK release version, reported in the User-Agent header.
const Version = "0.1.0"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client is the MedRx-Intelligence SDK client.  It is safe for concurrent
// use by multiple goroutines.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userID       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	prescriptions     *PrescriptionsClient
	prescriptionsOnce sync.Once
	medications       *MedicationsClient
	medicationsOnce   sync.Once
	adherence         *AdherenceClient
	adherenceOnce     sync.Once
	reminders         *RemindersClient
	remindersOnce     sync.Once
	users             *UsersClient
	usersOnce         sync.Once
}

// APIError represents an error response from the API.  The server returns
// errors as {"error": {"code": ..., "message": ...}}; the request ID is taken
// from the X-Request-ID response header.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("medrx: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// errorEnvelope matches the server's error response body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a new MedRx-Intelligence SDK client.  userID identifies
// the medication owner and is sent as the X-User-ID header on every request.
func NewClient(baseURL string, userID string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam("baseURL is required")
	}
	if userID == "" {
		return nil, errors.InvalidParam("userID is required")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.InvalidParam(fmt.Sprintf("invalid baseURL: %v", err))
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.InvalidParam("baseURL scheme must be http or https")
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:      baseURL,
		userID:       userID,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    fmt.Sprintf("medrx-go-sdk/%s", Version),
		logger:       &noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Prescriptions returns the prescriptions sub-client (lazy initialization, thread-safe).
func (c *Client) Prescriptions() *PrescriptionsClient {
	c.prescriptionsOnce.Do(func() {
		c.prescriptions = &PrescriptionsClient{client: c}
	})
	return c.prescriptions
}

// Medications returns the medications sub-client (lazy initialization, thread-safe).
func (c *Client) Medications() *MedicationsClient {
	c.medicationsOnce.Do(func() {
		c.medications = &MedicationsClient{client: c}
	})
	return c.medications
}

// Adherence returns the adherence sub-client (lazy initialization, thread-safe).
func (c *Client) Adherence() *AdherenceClient {
	c.adherenceOnce.Do(func() {
		c.adherence = &AdherenceClient{client: c}
	})
	return c.adherence
}

// Reminders returns the reminders sub-client (lazy initialization, thread-safe).
func (c *Client) Reminders() *RemindersClient {
	c.remindersOnce.Do(func() {
		c.reminders = &RemindersClient{client: c}
	})
	return c.reminders
}

// Users returns the users sub-client (lazy initialization, thread-safe).
func (c *Client) Users() *UsersClient {
	c.usersOnce.Do(func() {
		c.users = &UsersClient{client: c}
	})
	return c.users
}

// binaryResult marks a request whose response body is raw bytes rather than
// JSON.  send stores the body and Content-Type instead of unmarshalling.
type binaryResult struct {
	data        []byte
	contentType string
}

// do performs a JSON request with retry logic.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	return c.send(ctx, method, path, payload, "application/json", result)
}

// send executes an HTTP request with exponential-backoff retries.  payload is
// re-wrapped in a fresh reader on every attempt; contentType is only sent when
// a payload is present.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType string, result interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("retry attempt %d after %v", attempt, backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		requestID := uuid.New().String()
		req.Header.Set("X-User-ID", c.userID)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", contentType)
		}
		if _, binary := result.(*binaryResult); binary {
			req.Header.Set("Accept", "*/*")
		} else {
			req.Header.Set("Accept", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			c.logger.Errorf("request failed: %v", err)
			lastErr = err
			if c.shouldRetry(nil, err) {
				continue
			}
			return err
		}

		c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, duration)

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			if retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil && attempt < c.retryMax {
					c.logger.Infof("rate limited, retrying after %d seconds", seconds)
					select {
					case <-time.After(time.Duration(seconds) * time.Second):
						continue
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				RequestID:  requestID,
			}
			if echoed := resp.Header.Get("X-Request-ID"); echoed != "" {
				apiErr.RequestID = echoed
			}

			if len(respBody) > 0 {
				var envelope errorEnvelope
				if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Code != "" {
					apiErr.Code = envelope.Error.Code
					apiErr.Message = envelope.Error.Message
				} else {
					apiErr.Message = string(respBody)
				}
			}

			lastErr = apiErr
			if c.shouldRetry(resp, nil) {
				continue
			}
			return apiErr
		}

		if bin, ok := result.(*binaryResult); ok {
			bin.data = respBody
			bin.contentType = resp.Header.Get("Content-Type")
			return nil
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}

		return nil
	}

	return lastErr
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) shouldRetry(resp *http.Response, err error) bool {
	// Network errors are retryable.
	if err != nil {
		return true
	}

	// 5xx is retryable; 4xx is not (429 is handled separately).
	if resp != nil && resp.StatusCode >= 500 && resp.StatusCode < 600 {
		return true
	}

	return false
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}

	// Add jitter (0-25% of backoff).
	jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
	return backoff + jitter
}

// invalidArg reports a client-side argument validation failure without a
// round-trip to the server.
func invalidArg(msg string) error {
	return errors.InvalidParam(msg)
}
