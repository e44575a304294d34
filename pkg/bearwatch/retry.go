package bearwatch

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// retryPolicy bounds and spaces repeated delivery attempts. One attempt
// always runs; maxRetries counts the additional ones.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// execute runs op until it succeeds, fails terminally, or attempts are
// exhausted. Attempts run 0..maxRetries inclusive; the last classified
// error propagates. Cancellation of ctx aborts any backoff wait and is
// returned as-is, never converted into a delivery failure.
func execute[T any](ctx context.Context, p *retryPolicy, op func() (T, *Error)) (T, error) {
	var zero T
	for attempt := 0; ; {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !err.retryable() || attempt >= p.maxRetries {
			return zero, err
		}
		attempt++
		delay := p.delay(attempt, err)
		log.Debug().
			Int("attempt", attempt).
			Str("code", err.Code()).
			Dur("delay", delay).
			Msg("retrying heartbeat delivery")
		if waitErr := sleepCtx(ctx, delay); waitErr != nil {
			return zero, waitErr
		}
	}
}

// retryable reports whether a delivery attempt may be repeated: server
// errors, rate limiting, and transport-level I/O failures qualify;
// everything else is terminal on first occurrence.
func (e *Error) retryable() bool {
	if e.statusCode >= 500 && e.statusCode < 600 {
		return true
	}
	if e.statusCode == http.StatusTooManyRequests {
		return true
	}
	var netErr net.Error
	if errors.As(e.cause, &netErr) {
		return true
	}
	return errors.Is(e.cause, io.EOF) || errors.Is(e.cause, io.ErrUnexpectedEOF)
}

// delay computes the wait before the attempt'th retry. A server-directed
// Retry-After on a 429 overrides local backoff; otherwise exponential
// backoff with a jitter factor in [0.5, 1.0). attempt counts from 1.
func (p *retryPolicy) delay(attempt int, err *Error) time.Duration {
	if err.statusCode == http.StatusTooManyRequests && err.retryAfter != nil {
		return *err.retryAfter
	}
	exponential := time.Duration(1<<uint(attempt)) * p.baseDelay
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(exponential) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
