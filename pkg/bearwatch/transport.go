package bearwatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	apiKeyHeader    = "X-API-Key"
	requestIDHeader = "X-Request-Id"
	userAgent       = "bearwatch-sdk-go/0.1.0"
)

// httpClient delivers heartbeat requests to the ingest API. Synchronous
// sends run through the retry policy; postAsync is the single-attempt
// primitive both asynchronous surfaces derive from.
type httpClient struct {
	client *resty.Client
	retry  *retryPolicy
	wg     sync.WaitGroup
}

func newHTTPClient(cfg *Config) *httpClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader(apiKeyHeader, cfg.APIKey).
		SetHeader("User-Agent", userAgent)

	return &httpClient{
		client: client,
		retry:  &retryPolicy{maxRetries: cfg.MaxRetries, baseDelay: cfg.RetryDelay},
	}
}

// post sends one heartbeat through the retry policy, blocking the caller
// for the full attempt sequence including backoff waits.
func (h *httpClient) post(ctx context.Context, path string, body *HeartbeatRequest) (*HeartbeatResponse, error) {
	return execute(ctx, h.retry, func() (*HeartbeatResponse, *Error) {
		return h.doPost(ctx, path, body)
	})
}

// postAsync performs exactly one attempt on a transport goroutine and
// invokes done exactly once with the outcome.
func (h *httpClient) postAsync(path string, body *HeartbeatRequest, done func(*HeartbeatResponse, *Error)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		resp, err := h.doPost(context.Background(), path, body)
		done(resp, err)
	}()
}

func (h *httpClient) doPost(ctx context.Context, path string, body *HeartbeatRequest) (*HeartbeatResponse, *Error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString()).
		SetBody(body).
		Post(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("heartbeat request failed before a response")
		return nil, classifyTransport(err)
	}
	return handleResponse(resp.StatusCode(), resp.Header(), resp.Body(), path)
}

// Close waits for in-flight asynchronous sends and releases pooled
// connections. Safe to call once at process shutdown.
func (h *httpClient) Close() {
	h.wg.Wait()
	h.client.GetClient().CloseIdleConnections()
}

func classifyTransport(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError(err)
	}
	return networkError(err)
}

// handleResponse maps one HTTP exchange to a heartbeat response or a
// classified error. Status-driven errors are decided before envelope
// parsing since error bodies may be free text.
func handleResponse(statusCode int, header http.Header, body []byte, path string) (*HeartbeatResponse, *Error) {
	switch {
	case statusCode == http.StatusUnauthorized:
		return nil, invalidAPIKey()
	case statusCode == http.StatusNotFound:
		return nil, jobNotFound(extractJobID(path))
	case statusCode == http.StatusTooManyRequests:
		return nil, rateLimited(parseRetryAfter(header.Get("Retry-After")), string(body))
	case statusCode >= 500:
		return nil, serverError(statusCode, string(body))
	}

	var envelope apiResponse[HeartbeatResponse]
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return nil, invalidResponse(
			fmt.Sprintf("malformed response body: %v", err), statusCode, string(body), err)
	}
	if !envelope.Success {
		code, message := "UNKNOWN_ERROR", "unknown error"
		if envelope.Error != nil {
			code, message = envelope.Error.Code, envelope.Error.Message
		}
		return nil, apiFailure(statusCode, code, message, string(body))
	}
	if envelope.Data == nil {
		return nil, invalidResponse("success envelope without data", statusCode, string(body), nil)
	}
	return envelope.Data, nil
}

// extractJobID recovers the job id from an ingest path of the form
// /api/v1/ingest/jobs/{jobId}/heartbeat.
func extractJobID(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) >= 6 {
		return parts[5]
	}
	return "unknown"
}

// parseRetryAfter understands both forms of the Retry-After header:
// delay seconds and an RFC 1123 HTTP-date, the latter clamped to a
// non-negative delay. Unparsable values yield nil.
func parseRetryAfter(value string) *time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

func heartbeatPath(jobID string) string {
	return fmt.Sprintf("/api/v1/ingest/jobs/%s/heartbeat", jobID)
}
