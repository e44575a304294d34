// Package bearwatch reports job execution outcomes to the BearWatch
// monitoring API over HTTPS, with bounded retries, exponential backoff
// and Retry-After negotiation.
package bearwatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Client reports heartbeats for registered jobs. It is safe for
// concurrent use; the underlying connection pool is shared for the
// client's lifetime and released by Close. Concurrent calls have no
// ordering relationship — callers needing RUNNING-then-SUCCESS ordering
// for one run must sequence the calls themselves.
type Client struct {
	cfg  *Config
	http *httpClient
}

// New creates a Client from cfg. A nil configuration is an error, as is
// an empty API key or a negative retry count.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, http: newHTTPClient(cfg)}, nil
}

// Result carries the outcome of an asynchronous heartbeat: exactly one
// of Response and Err is set.
type Result struct {
	Response *HeartbeatResponse
	Err      error
}

// ResultCallback receives the outcome of an asynchronous heartbeat. It
// is invoked exactly once, from a transport goroutine.
type ResultCallback func(*HeartbeatResponse, error)

// Ping sends a heartbeat for jobID with the given options (nil means
// defaults: a zero-duration SUCCESS at the current time). The send is
// retried per the configured policy; the final error, if any, carries
// the "ping" operation context.
func (c *Client) Ping(ctx context.Context, jobID string, opts *PingOptions) (*HeartbeatResponse, error) {
	req, err := opts.toRequest()
	if err != nil {
		return nil, err
	}
	return c.send(ctx, jobID, req, "ping")
}

// Complete sends a SUCCESS heartbeat for jobID.
func (c *Client) Complete(ctx context.Context, jobID string, opts *CompleteOptions) (*HeartbeatResponse, error) {
	var output string
	var metadata map[string]any
	if opts != nil {
		output, metadata = opts.Output, opts.Metadata
	}
	return c.send(ctx, jobID, completionRequest(time.Time{}, output, metadata), "complete")
}

// Fail sends a FAILED heartbeat for jobID with the given error message.
func (c *Client) Fail(ctx context.Context, jobID, message string) (*HeartbeatResponse, error) {
	return c.send(ctx, jobID, failureRequest(time.Time{}, message), "fail")
}

// FailError is the error-valued form of Fail; the message is derived
// from cause.
func (c *Client) FailError(ctx context.Context, jobID string, cause error) (*HeartbeatResponse, error) {
	return c.Fail(ctx, jobID, errorMessage(cause))
}

// PingAsync sends a single-attempt heartbeat without blocking the
// caller and invokes cb exactly once with the outcome. Failures carry
// the "pingAsync" operation context and are reported to the configured
// error observer.
func (c *Client) PingAsync(jobID string, opts *PingOptions, cb ResultCallback) {
	req, err := opts.toRequest()
	if err != nil {
		c.deliver(cb, nil, err)
		return
	}
	c.http.postAsync(heartbeatPath(jobID), req, func(resp *HeartbeatResponse, sendErr *Error) {
		if sendErr != nil {
			enriched := sendErr.WithContext(ErrorContext{JobID: jobID, Operation: "pingAsync"})
			c.observe(enriched)
			c.deliver(cb, nil, enriched)
			return
		}
		c.deliver(cb, resp, nil)
	})
}

// CompleteAsync sends a single-attempt SUCCESS heartbeat and returns a
// channel that resolves with the outcome exactly once.
func (c *Client) CompleteAsync(jobID string, opts *CompleteOptions) <-chan Result {
	var output string
	var metadata map[string]any
	if opts != nil {
		output, metadata = opts.Output, opts.Metadata
	}
	return c.sendAsync(jobID, completionRequest(time.Time{}, output, metadata), "completeAsync")
}

// FailAsync sends a single-attempt FAILED heartbeat with the given
// error message.
func (c *Client) FailAsync(jobID, message string) <-chan Result {
	return c.sendAsync(jobID, failureRequest(time.Time{}, message), "failAsync")
}

// FailErrorAsync is the error-valued form of FailAsync.
func (c *Client) FailErrorAsync(jobID string, cause error) <-chan Result {
	return c.FailAsync(jobID, errorMessage(cause))
}

// Close waits for outstanding asynchronous sends and releases pooled
// connections. Call once at process shutdown.
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) send(ctx context.Context, jobID string, req *HeartbeatRequest, op string) (*HeartbeatResponse, error) {
	resp, err := c.http.post(ctx, heartbeatPath(jobID), req)
	if err != nil {
		return nil, withOpContext(err, jobID, op)
	}
	return resp, nil
}

// sendAsync is the future surface over the transport's single-attempt
// primitive; PingAsync is the callback surface over the same primitive.
func (c *Client) sendAsync(jobID string, req *HeartbeatRequest, op string) <-chan Result {
	ch := make(chan Result, 1)
	c.http.postAsync(heartbeatPath(jobID), req, func(resp *HeartbeatResponse, sendErr *Error) {
		defer close(ch)
		if sendErr != nil {
			enriched := sendErr.WithContext(ErrorContext{JobID: jobID, Operation: op})
			c.observe(enriched)
			ch <- Result{Err: enriched}
			return
		}
		ch <- Result{Response: resp}
	})
	return ch
}

// deliver invokes cb once, containing any panic so a misbehaving
// callback cannot surface as a second completion.
func (c *Client) deliver(cb ResultCallback, resp *HeartbeatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("heartbeat callback panicked")
		}
	}()
	cb(resp, err)
}

func (c *Client) observe(err *Error) {
	if c.cfg.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("error observer panicked")
		}
	}()
	c.cfg.OnError(err)
}

// withOpContext enriches classified errors with the operation context;
// cancellation errors pass through untouched.
func withOpContext(err error, jobID, op string) error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.WithContext(ErrorContext{JobID: jobID, Operation: op})
	}
	return err
}

func completionRequest(startedAt time.Time, output string, metadata map[string]any) *HeartbeatRequest {
	completedAt := time.Now()
	if startedAt.IsZero() {
		startedAt = completedAt
	}
	return &HeartbeatRequest{
		Status:      StatusSuccess,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Output:      output,
		Metadata:    metadata,
	}
}

func failureRequest(startedAt time.Time, message string) *HeartbeatRequest {
	completedAt := time.Now()
	if startedAt.IsZero() {
		startedAt = completedAt
	}
	return &HeartbeatRequest{
		Status:      StatusFailed,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Error:       message,
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
