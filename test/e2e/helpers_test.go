package e2e_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/client"
)

var userCounter uint64

// newUserClient returns an SDK client scoped to a fresh user, so tests never
// see each other's medications even though they share one server.
func newUserClient(t *testing.T) *client.Client {
	t.Helper()
	id := fmt.Sprintf("e2e-user-%d-%d", time.Now().UnixNano(), atomic.AddUint64(&userCounter, 1))
	c, err := client.NewClient(env.baseURL, id)
	if err != nil {
		t.Fatalf("create SDK client: %v", err)
	}
	return c
}

// testContext returns a context bounded to the test's lifetime.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// requireAPIError asserts err is an APIError with the given HTTP status and
// returns it for further inspection.
func requireAPIError(t *testing.T, err error, wantStatus int) *client.APIError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an API error with HTTP %d, got nil", wantStatus)
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected *client.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != wantStatus {
		t.Fatalf("expected HTTP %d, got %d (code=%s message=%s)",
			wantStatus, apiErr.StatusCode, apiErr.Code, apiErr.Message)
	}
	return apiErr
}
