// Package config defines environment configuration structs and loaders.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	ClientEnvConfig
	MockServerEnvConfig
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClientEnvConfig holds BearWatch API client settings.
type ClientEnvConfig struct {
	APIKey     string        `env:"BEARWATCH_API_KEY"`
	BaseURL    string        `env:"BEARWATCH_BASE_URL" envDefault:"https://api.bearwatch.dev"`
	Timeout    time.Duration `env:"BEARWATCH_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"BEARWATCH_MAX_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"BEARWATCH_RETRY_DELAY" envDefault:"500ms"`
}

// MockServerEnvConfig configures the local mock ingest server.
type MockServerEnvConfig struct {
	MockAddr   string `env:"BEARWATCH_MOCK_ADDR" envDefault:"127.0.0.1:8080"`
	MockAPIKey string `env:"BEARWATCH_MOCK_API_KEY" envDefault:"bw_dev_key"`
	// MockFailFirst makes the server answer the first N heartbeats with
	// HTTP 500, useful for exercising client retries locally.
	MockFailFirst int `env:"BEARWATCH_MOCK_FAIL_FIRST" envDefault:"0"`
}
