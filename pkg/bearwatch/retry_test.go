package bearwatch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetry_ExhaustsAttempts(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2} {
		var calls atomic.Int64
		client := newTestClient(t, &Config{APIKey: "bw_test_key", MaxRetries: maxRetries}, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Ping(context.Background(), "job-1", nil)
		if err == nil {
			t.Fatalf("maxRetries=%d: expected error", maxRetries)
		}
		if got, want := calls.Load(), int64(maxRetries+1); got != want {
			t.Fatalf("maxRetries=%d: saw %d attempts, want %d", maxRetries, got, want)
		}
	}
}

func TestRetry_TerminalStatusNotRetried(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, &Config{APIKey: "bw_test_key", MaxRetries: 3}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Ping(context.Background(), "job-9", nil)
	var classified *Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if classified.Code() != CodeJobNotFound {
		t.Fatalf("expected JOB_NOT_FOUND, got %s", classified.Code())
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("terminal failure must not be retried, saw %d attempts", got)
	}
}

func TestRetry_CancelDuringWait(t *testing.T) {
	client := newTestClient(t, &Config{APIKey: "bw_test_key", MaxRetries: 3, RetryDelay: 5 * time.Second}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Ping(ctx, "job-1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation should interrupt the backoff wait, took %v", elapsed)
	}
}

func TestRetryable_Classification(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if !networkError(opErr).retryable() {
		t.Fatalf("network failures must be retryable")
	}
	if !serverError(http.StatusServiceUnavailable, "").retryable() {
		t.Fatalf("5xx must be retryable")
	}
	if !rateLimited(nil, "").retryable() {
		t.Fatalf("429 must be retryable")
	}
	if invalidAPIKey().retryable() {
		t.Fatalf("401 must be terminal")
	}
	if jobNotFound("job-1").retryable() {
		t.Fatalf("404 must be terminal")
	}
	if apiFailure(http.StatusOK, "QUOTA_EXCEEDED", "quota exceeded", "").retryable() {
		t.Fatalf("logical failures must be terminal")
	}
	if networkError(errors.New("not a net error")).retryable() {
		t.Fatalf("non-transport cause must be terminal")
	}
}

func TestDelay_RetryAfterOverride(t *testing.T) {
	p := &retryPolicy{maxRetries: 3, baseDelay: time.Second}
	ra := 1500 * time.Millisecond
	if got := p.delay(3, rateLimited(&ra, "")); got != ra {
		t.Fatalf("expected the server-directed delay %v, got %v", ra, got)
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	p := &retryPolicy{maxRetries: 3, baseDelay: 100 * time.Millisecond}
	for attempt := 0; attempt <= 3; attempt++ {
		upper := time.Duration(1<<uint(attempt)) * p.baseDelay
		lower := upper / 2
		for i := 0; i < 200; i++ {
			d := p.delay(attempt, serverError(http.StatusInternalServerError, ""))
			if d < lower || d > upper {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lower, upper)
			}
		}
	}
}

func TestDelay_RateLimitWithoutHeaderUsesBackoff(t *testing.T) {
	p := &retryPolicy{maxRetries: 3, baseDelay: 100 * time.Millisecond}
	upper := 2 * p.baseDelay
	d := p.delay(1, rateLimited(nil, ""))
	if d < upper/2 || d > upper {
		t.Fatalf("delay %v outside [%v, %v]", d, upper/2, upper)
	}
}
