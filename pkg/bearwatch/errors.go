package bearwatch

import (
	"fmt"
	"net/http"
	"time"
)

// Stable error codes carried by *Error. Server-reported failures carry
// the code from the response envelope instead.
const (
	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeInvalidAPIKey   = "INVALID_API_KEY"
	CodeJobNotFound     = "JOB_NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
)

// ErrorContext identifies the operation a failure belongs to. RunID is
// empty when no successful response has been observed for the run.
type ErrorContext struct {
	JobID     string
	RunID     string
	Operation string
}

func (c ErrorContext) String() string {
	return fmt.Sprintf("job=%q run=%q op=%q", c.JobID, c.RunID, c.Operation)
}

// Error is the failure type returned by every SDK operation. It unifies
// transport failures and server-side rejections; callers branch on Code,
// not on concrete types.
type Error struct {
	statusCode   int
	code         string
	message      string
	responseBody string
	retryAfter   *time.Duration
	cause        error
	context      *ErrorContext
	origin       *Error
}

func (e *Error) Error() string {
	if e.context != nil {
		return fmt.Sprintf("%s (%s)", e.message, e.context)
	}
	return e.message
}

// StatusCode returns the HTTP status code, or 0 when no response was
// received.
func (e *Error) StatusCode() int {
	return e.statusCode
}

// Code returns the stable error code, or the server-supplied code for
// envelope-reported failures.
func (e *Error) Code() string {
	return e.code
}

// ResponseBody returns the raw response body, or "" when none applies.
func (e *Error) ResponseBody() string {
	return e.responseBody
}

// RetryAfter returns the server-directed retry delay from a 429
// response, or nil when the header was absent or unparsable.
func (e *Error) RetryAfter() *time.Duration {
	return e.retryAfter
}

// Context returns the operation context attached to this error, or nil.
func (e *Error) Context() *ErrorContext {
	return e.context
}

// Origin returns the pre-enrichment error when WithContext recorded one
// for provenance, or nil.
func (e *Error) Origin() *Error {
	return e.origin
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithContext returns a copy of the error with ctx attached. All other
// fields are preserved. When the error has no cause chain carrying
// provenance, the original is kept reachable through Origin.
func (e *Error) WithContext(ctx ErrorContext) *Error {
	enriched := &Error{
		statusCode:   e.statusCode,
		code:         e.code,
		message:      e.message,
		responseBody: e.responseBody,
		retryAfter:   e.retryAfter,
		cause:        e.cause,
		context:      &ctx,
	}
	if e.cause == nil {
		enriched.origin = e
	}
	return enriched
}

func networkError(cause error) *Error {
	return &Error{
		code:    CodeNetworkError,
		message: fmt.Sprintf("network error: %v", cause),
		cause:   cause,
	}
}

func timeoutError(cause error) *Error {
	return &Error{
		code:    CodeTimeout,
		message: "request timed out",
		cause:   cause,
	}
}

func invalidAPIKey() *Error {
	return &Error{
		statusCode: http.StatusUnauthorized,
		code:       CodeInvalidAPIKey,
		message:    "invalid or expired API key",
	}
}

func jobNotFound(jobID string) *Error {
	return &Error{
		statusCode: http.StatusNotFound,
		code:       CodeJobNotFound,
		message:    "job not found: " + jobID,
	}
}

func rateLimited(retryAfter *time.Duration, body string) *Error {
	return &Error{
		statusCode:   http.StatusTooManyRequests,
		code:         CodeRateLimited,
		message:      "rate limit exceeded",
		responseBody: body,
		retryAfter:   retryAfter,
	}
}

func serverError(statusCode int, body string) *Error {
	return &Error{
		statusCode:   statusCode,
		code:         CodeServerError,
		message:      fmt.Sprintf("server error: %d", statusCode),
		responseBody: body,
	}
}

func invalidResponse(message string, statusCode int, body string, cause error) *Error {
	return &Error{
		statusCode:   statusCode,
		code:         CodeInvalidResponse,
		message:      message,
		responseBody: body,
		cause:        cause,
	}
}

// apiFailure represents a response envelope that explicitly reports
// failure, carrying the server's own code and message.
func apiFailure(statusCode int, code, message, body string) *Error {
	return &Error{
		statusCode:   statusCode,
		code:         code,
		message:      message,
		responseBody: body,
	}
}
