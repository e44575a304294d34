// Package mockserver implements a local stand-in for the BearWatch
// ingest API, useful for development and for exercising SDK retry
// behaviour without a real backend.
package mockserver

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bearwatch/bearwatch-go/internal/config"
)

// envelope mirrors the ingest API response contract.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type heartbeatBody struct {
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	Output      string         `json:"output"`
	Error       string         `json:"error"`
	Metadata    map[string]any `json:"metadata"`
}

// Server is the mock ingest API.
type Server struct {
	App *fiber.App

	cfg      *config.MockServerEnvConfig
	requests atomic.Int64
}

func NewServer(cfg *config.MockServerEnvConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	app := fiber.New(fiber.Config{
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
	})
	app.Use(recover.New())

	s := &Server{App: app, cfg: cfg}
	app.Post("/api/v1/ingest/jobs/:jobId/heartbeat", s.handleHeartbeat)
	return s, nil
}

func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	n := s.requests.Add(1)
	if s.cfg.MockFailFirst > 0 && n <= int64(s.cfg.MockFailFirst) {
		log.Warn().Int64("request", n).Msg("injected server failure")
		return c.Status(fiber.StatusInternalServerError).SendString("injected failure")
	}

	if c.Get("X-API-Key") != s.cfg.MockAPIKey {
		return c.Status(fiber.StatusUnauthorized).JSON(envelope{
			Error: &errorInfo{Code: "INVALID_API_KEY", Message: "invalid or expired API key"},
		})
	}

	var hb heartbeatBody
	if err := sonic.Unmarshal(c.Body(), &hb); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal heartbeat")
		return c.Status(fiber.StatusBadRequest).JSON(envelope{
			Error: &errorInfo{Code: "INVALID_BODY", Message: "request body is not valid JSON"},
		})
	}

	switch hb.Status {
	case "RUNNING", "SUCCESS", "FAILED":
	default:
		return c.JSON(envelope{
			Error: &errorInfo{Code: "VALIDATION_ERROR", Message: "status must be RUNNING, SUCCESS or FAILED"},
		})
	}
	if hb.CompletedAt.Before(hb.StartedAt) {
		return c.JSON(envelope{
			Error: &errorInfo{Code: "VALIDATION_ERROR", Message: "completedAt must not precede startedAt"},
		})
	}

	jobID := c.Params("jobId")
	log.Info().
		Str("job_id", jobID).
		Str("status", hb.Status).
		Msg("heartbeat received")

	return c.JSON(envelope{
		Success: true,
		Data: fiber.Map{
			"runId":      uuid.NewString(),
			"jobId":      jobID,
			"status":     hb.Status,
			"receivedAt": time.Now().UTC(),
		},
	})
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	return s.App.Listen(s.cfg.MockAddr)
}

func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}
