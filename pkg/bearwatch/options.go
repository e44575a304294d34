package bearwatch

import (
	"fmt"
	"time"
)

// PingOptions customizes a single heartbeat. The zero value (or a nil
// pointer) reports a zero-duration SUCCESS at the current instant.
type PingOptions struct {
	// Status defaults to SUCCESS. Only RUNNING, SUCCESS and FAILED may
	// be sent; TIMEOUT and MISSED are server-detected.
	Status Status
	// StartedAt defaults to CompletedAt.
	StartedAt time.Time
	// CompletedAt defaults to the current time.
	CompletedAt time.Time
	// Output is advisory, at most 10KB; the server truncates beyond that.
	Output string
	// Error is only meaningful with StatusFailed. Same 10KB limit.
	Error string
	// Metadata is advisory, at most 10KB serialized; the server nulls it
	// when exceeded.
	Metadata map[string]any
}

// toRequest applies the documented defaults and validates the status.
func (o *PingOptions) toRequest() (*HeartbeatRequest, error) {
	if o == nil {
		o = &PingOptions{}
	}
	status := o.Status
	if status == "" {
		status = StatusSuccess
	}
	if !status.validForRequest() {
		return nil, fmt.Errorf("status %s cannot be sent in a heartbeat request", status)
	}
	completedAt := o.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	startedAt := o.StartedAt
	if startedAt.IsZero() {
		startedAt = completedAt
	}
	return &HeartbeatRequest{
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Output:      o.Output,
		Error:       o.Error,
		Metadata:    o.Metadata,
	}, nil
}

// CompleteOptions customizes a completion heartbeat.
type CompleteOptions struct {
	Output   string
	Metadata map[string]any
}

// WrapOptions configures heartbeats emitted by the wrap helpers. Output
// and Metadata are forwarded on the completion path only; failure
// heartbeats always carry the task's error message instead.
type WrapOptions struct {
	Output   string
	Metadata map[string]any
}
