package bearwatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Wrap executes task and reports its outcome as a heartbeat, measuring
// elapsed time from just before the task runs. The heartbeat send is
// retried but best-effort: a delivery error is logged and discarded so
// it can never mask the task's own result, which Wrap always returns.
func (c *Client) Wrap(ctx context.Context, jobID string, opts *WrapOptions, task func() error) error {
	startedAt := time.Now()
	if err := task(); err != nil {
		c.reportFailure(ctx, jobID, startedAt, err)
		return err
	}
	c.reportCompletion(ctx, jobID, startedAt, opts)
	return nil
}

// WrapValue is the value-returning form of Wrap.
func WrapValue[T any](ctx context.Context, c *Client, jobID string, opts *WrapOptions, task func() (T, error)) (T, error) {
	startedAt := time.Now()
	value, err := task()
	if err != nil {
		c.reportFailure(ctx, jobID, startedAt, err)
		return value, err
	}
	c.reportCompletion(ctx, jobID, startedAt, opts)
	return value, nil
}

// TaskResult carries the outcome of a task run through WrapAsync.
type TaskResult[T any] struct {
	Value T
	Err   error
}

// WrapAsync runs task on its own goroutine and resolves the returned
// channel once both the task and its single-attempt heartbeat have
// settled. The resolution is always the task's own outcome; the
// heartbeat outcome only sequences delivery and is then discarded.
func WrapAsync[T any](c *Client, jobID string, opts *WrapOptions, task func() (T, error)) <-chan TaskResult[T] {
	out := make(chan TaskResult[T], 1)
	startedAt := time.Now()
	go func() {
		defer close(out)
		value, err := task()

		var settled <-chan Result
		if err != nil {
			settled = c.sendAsync(jobID, failureRequest(startedAt, err.Error()), "failAsync")
		} else {
			var output string
			var metadata map[string]any
			if opts != nil {
				output, metadata = opts.Output, opts.Metadata
			}
			settled = c.sendAsync(jobID, completionRequest(startedAt, output, metadata), "completeAsync")
		}
		if r := <-settled; r.Err != nil {
			log.Debug().Err(r.Err).Str("job_id", jobID).Msg("wrap heartbeat delivery failed")
		}

		out <- TaskResult[T]{Value: value, Err: err}
	}()
	return out
}

func (c *Client) reportCompletion(ctx context.Context, jobID string, startedAt time.Time, opts *WrapOptions) {
	var output string
	var metadata map[string]any
	if opts != nil {
		output, metadata = opts.Output, opts.Metadata
	}
	if _, err := c.send(ctx, jobID, completionRequest(startedAt, output, metadata), "complete"); err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Msg("completion heartbeat delivery failed")
	}
}

func (c *Client) reportFailure(ctx context.Context, jobID string, startedAt time.Time, taskErr error) {
	if _, err := c.send(ctx, jobID, failureRequest(startedAt, taskErr.Error()), "fail"); err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Msg("failure heartbeat delivery failed")
	}
}
