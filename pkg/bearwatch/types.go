package bearwatch

import "time"

// Status is the status of a job run.
type Status string

const (
	// StatusRunning reports that a run has started and is in progress.
	StatusRunning Status = "RUNNING"
	// StatusSuccess reports a completed run.
	StatusSuccess Status = "SUCCESS"
	// StatusFailed reports a failed run.
	StatusFailed Status = "FAILED"

	// StatusTimeout is assigned by the server when a run exceeds its
	// deadline. It is never sent by the client.
	StatusTimeout Status = "TIMEOUT"
	// StatusMissed is assigned by the server when an expected run never
	// reports. It is never sent by the client.
	StatusMissed Status = "MISSED"
)

// validForRequest reports whether the status may be sent in a heartbeat.
// TIMEOUT and MISSED are server-detected states.
func (s Status) validForRequest() bool {
	switch s {
	case StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// HeartbeatRequest is the body of one heartbeat ingest call. It is built
// fresh per call and never mutated after construction.
type HeartbeatRequest struct {
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HeartbeatResponse is the server's record of an accepted heartbeat.
type HeartbeatResponse struct {
	RunID      string    `json:"runId"`
	JobID      string    `json:"jobId"`
	Status     Status    `json:"status"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// apiResponse is the envelope every ingest endpoint responds with.
type apiResponse[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data"`
	Error   *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
