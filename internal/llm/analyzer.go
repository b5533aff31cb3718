// Package llm sends analysis prompts to a generative model and returns its raw reply.
package llm

import (
	"context"
	"time"
)

// SystemInstruction is sent with every request as the model's standing role
const SystemInstruction = "Você é um especialista em Clash Royale. Sempre responda com JSON válido."

// UpstreamFailureMessage is reported when the model provider cannot produce a reply
const UpstreamFailureMessage = "Erro ao gerar deck counter com IA"

// DeckAnalyzer turns a prompt into the model's raw text reply
type DeckAnalyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Config holds the settings shared by all analyzer backends
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// MaxAttempts counts the first call; 1 disables retries
	MaxAttempts int
	// RateLimit is the allowed requests per second; zero disables limiting
	RateLimit float64
	// Backoff is the delay before the first retry, doubled on each further attempt
	Backoff time.Duration
}

// Default settings for the gateway backend
const (
	DefaultGatewayURL   = "https://ai.gateway.lovable.dev/v1"
	DefaultGatewayModel = "google/gemini-2.5-flash"
	DefaultGeminiModel  = "gemini-2.5-flash"
	DefaultTimeout      = 60 * time.Second
	DefaultMaxAttempts  = 3
	DefaultBackoff      = time.Second
)

func (c Config) withDefaults(baseURL, model string) Config {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}
