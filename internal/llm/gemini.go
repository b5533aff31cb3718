package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/logger"
)

// GeminiClient calls the Gemini API directly through the genai SDK
type GeminiClient struct {
	cfg       Config
	client    *genai.Client
	transport *http.Transport
	limiter   *rate.Limiter
}

// NewGeminiClient creates a Gemini analyzer. Without an API key the SDK
// client is not built and Analyze reports the missing configuration.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	cfg = cfg.withDefaults("", DefaultGeminiModel)

	g := &GeminiClient{cfg: cfg, transport: http.DefaultTransport.(*http.Transport).Clone()}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if cfg.APIKey == "" {
		return g, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: g.transport, Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

// Close releases idle connections held by the client
func (g *GeminiClient) Close() {
	g.transport.CloseIdleConnections()
}

// Analyze generates a reply for prompt using the fixed system instruction
func (g *GeminiClient) Analyze(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", apperrors.NewConfigurationMissingError("GEMINI_API_KEY não configurada", nil)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, g.cfg.Backoff<<uint(attempt-1)); err != nil {
				return "", apperrors.NewUpstreamError(UpstreamFailureMessage, err)
			}
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", apperrors.NewUpstreamError(UpstreamFailureMessage, err)
			}
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, genCfg)
		if err == nil {
			text := resp.Text()
			logger.WithFields(logrus.Fields{
				"model":        g.cfg.Model,
				"attempts":     attempt + 1,
				"duration_ms":  time.Since(start).Milliseconds(),
				"response_len": len(text),
			}).Info("Gemini call completed")
			return text, nil
		}

		lastErr = err
		retryable := retryableGenAIError(err)
		logger.WithFields(logrus.Fields{
			"model":     g.cfg.Model,
			"attempt":   attempt + 1,
			"retryable": retryable,
		}).WithError(err).Warn("Gemini call failed")

		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return "", apperrors.NewUpstreamError(UpstreamFailureMessage, lastErr)
}

// retryableGenAIError treats 429 and 5xx API errors as transient, along with
// transport failures that never produced a status code.
func retryableGenAIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
