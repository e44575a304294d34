package bearwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func newTestClient(t *testing.T, cfg *Config, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	if cfg == nil {
		cfg = &Config{APIKey: "bw_test_key"}
	}
	cfg.BaseURL = ts.URL
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func writeSuccess(w http.ResponseWriter, jobID string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"data":{"runId":"run-1","jobId":%q,"status":"SUCCESS","receivedAt":"2026-01-02T03:04:05.123456789Z"},"error":null}`, jobID)
}

// captureRequests decodes every heartbeat body the handler sees.
type captureRequests struct {
	mu   sync.Mutex
	reqs []HeartbeatRequest
}

func (c *captureRequests) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var hb HeartbeatRequest
		if err := sonic.Unmarshal(body, &hb); err != nil {
			t.Errorf("unmarshal heartbeat body: %v", err)
		}
		c.mu.Lock()
		c.reqs = append(c.reqs, hb)
		c.mu.Unlock()
		writeSuccess(w, "job-1")
	}
}

func (c *captureRequests) all() []HeartbeatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HeartbeatRequest(nil), c.reqs...)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := New(&Config{}); err == nil {
		t.Fatalf("expected error for empty api key")
	}
	if _, err := New(&Config{APIKey: "bw_key", MaxRetries: -1}); err == nil {
		t.Fatalf("expected error for negative max retries")
	}
}

func TestPing_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, &Config{APIKey: "bw_test_key", MaxRetries: 3}, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeSuccess(w, "job-1")
	})

	resp, err := client.Ping(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if resp.RunID != "run-1" || resp.JobID != "job-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestPing_DefaultsToZeroDurationSuccess(t *testing.T) {
	capture := &captureRequests{}
	client := newTestClient(t, nil, capture.handler(t))

	if _, err := client.Ping(context.Background(), "job-1", nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	reqs := capture.all()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	hb := reqs[0]
	if hb.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", hb.Status)
	}
	if hb.StartedAt.IsZero() || !hb.StartedAt.Equal(hb.CompletedAt) {
		t.Fatalf("expected zero-duration run, got startedAt=%v completedAt=%v", hb.StartedAt, hb.CompletedAt)
	}
}

func TestPing_RateLimitHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, &Config{APIKey: "bw_test_key", MaxRetries: 2}, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeSuccess(w, "job-1")
	})

	start := time.Now()
	if _, err := client.Ping(context.Background(), "job-1", nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected the server-directed delay to apply, finished in %v", elapsed)
	}
}

func TestPing_RejectsServerDetectedStatus(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should be sent for an invalid status")
	})

	if _, err := client.Ping(context.Background(), "job-1", &PingOptions{Status: StatusTimeout}); err == nil {
		t.Fatalf("expected error for TIMEOUT status")
	}
	if _, err := client.Ping(context.Background(), "job-1", &PingOptions{Status: StatusMissed}); err == nil {
		t.Fatalf("expected error for MISSED status")
	}
}

func TestPingAsync_SingleAttemptWithAsyncTag(t *testing.T) {
	var calls atomic.Int64
	observed := make(chan *Error, 1)
	client := newTestClient(t, &Config{
		APIKey:     "bw_test_key",
		MaxRetries: 3,
		OnError:    func(e *Error) { observed <- e },
	}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	errCh := make(chan error, 1)
	client.PingAsync("job-1", nil, func(resp *HeartbeatResponse, err error) {
		errCh <- err
	})

	err := <-errCh
	var classified *Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if classified.Code() != CodeServerError {
		t.Fatalf("expected SERVER_ERROR, got %s", classified.Code())
	}
	if ctx := classified.Context(); ctx == nil || ctx.Operation != "pingAsync" || ctx.JobID != "job-1" {
		t.Fatalf("unexpected context: %+v", classified.Context())
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("async send must be single-attempt, saw %d requests", got)
	}

	select {
	case obs := <-observed:
		if obs.Context() == nil || obs.Context().Operation != "pingAsync" {
			t.Fatalf("observer saw unexpected error: %+v", obs)
		}
	case <-time.After(time.Second):
		t.Fatalf("error observer was not notified")
	}
}

func TestCompleteAsyncAndFailAsync(t *testing.T) {
	capture := &captureRequests{}
	client := newTestClient(t, nil, capture.handler(t))

	r1 := <-client.CompleteAsync("job-1", &CompleteOptions{Output: "done"})
	if r1.Err != nil {
		t.Fatalf("complete async: %v", r1.Err)
	}
	if r1.Response == nil || r1.Response.RunID != "run-1" {
		t.Fatalf("unexpected response: %+v", r1.Response)
	}

	r2 := <-client.FailAsync("job-1", "boom")
	if r2.Err != nil {
		t.Fatalf("fail async: %v", r2.Err)
	}

	reqs := capture.all()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Status != StatusSuccess || reqs[0].Output != "done" {
		t.Fatalf("unexpected completion body: %+v", reqs[0])
	}
	if reqs[1].Status != StatusFailed || reqs[1].Error != "boom" {
		t.Fatalf("unexpected failure body: %+v", reqs[1])
	}
}

func TestFailError_DerivesMessage(t *testing.T) {
	capture := &captureRequests{}
	client := newTestClient(t, nil, capture.handler(t))

	if _, err := client.FailError(context.Background(), "job-1", errors.New("kaput")); err != nil {
		t.Fatalf("fail: %v", err)
	}
	reqs := capture.all()
	if len(reqs) != 1 || reqs[0].Status != StatusFailed || reqs[0].Error != "kaput" {
		t.Fatalf("unexpected failure body: %+v", reqs)
	}
}
