package bearwatch

import (
	"errors"
	"time"
)

// Defaults applied by DefaultConfig and, for unset fields, by New.
const (
	DefaultBaseURL    = "https://api.bearwatch.dev"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Config configures a Client. APIKey is required and must be non-empty.
// Zero values for BaseURL, Timeout and RetryDelay fall back to the
// defaults above; MaxRetries is used as given, so 0 means exactly one
// attempt per send. Use DefaultConfig for the documented default of
// three retries.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// OnError, when set, observes every asynchronous delivery failure.
	// It is informational only and never affects control flow or retry
	// behaviour.
	OnError func(*Error)
}

// DefaultConfig returns a Config for apiKey with all defaults applied.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("api key must not be empty")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must be non-negative")
	}
	return nil
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = DefaultRetryDelay
	}
	return &out
}
