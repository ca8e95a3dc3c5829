// Package llm wraps the text completion backends used for article summaries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client turns a prompt into a completion.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
	Close() error
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

var (
	// ErrDisabled is returned by New when no backend is configured.
	ErrDisabled = errors.New("llm disabled")
	// ErrEmptyResponse is returned when the backend answers without text.
	ErrEmptyResponse = errors.New("llm returned no text")
)

// Config selects a backend.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// New builds the configured client wrapped with request pacing and a per-call timeout.
func New(ctx context.Context, cfg Config) (Client, error) {
	var (
		c   Client
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, ErrDisabled
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini api key not set", ErrDisabled)
		}
		c, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: openai api key not set", ErrDisabled)
		}
		c = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(c, cfg.RequestsPerMinute, cfg.Timeout), nil
}
