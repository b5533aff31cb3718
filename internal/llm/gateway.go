package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/logger"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GatewayClient calls an OpenAI-compatible chat completions endpoint
type GatewayClient struct {
	cfg        Config
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter
}

// NewGatewayClient creates a gateway analyzer. A missing API key is not an
// error here; it is reported on the first Analyze call.
func NewGatewayClient(cfg Config) *GatewayClient {
	cfg = cfg.withDefaults(DefaultGatewayURL, DefaultGatewayModel)

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &GatewayClient{
		cfg:       cfg,
		transport: transport,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Close releases idle connections held by the client
func (c *GatewayClient) Close() {
	c.transport.CloseIdleConnections()
}

// Analyze sends the prompt with the fixed system instruction and returns the
// content of the first choice. Network errors, 429 and 5xx are retried with
// exponential backoff; other statuses fail immediately.
func (c *GatewayClient) Analyze(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", apperrors.NewConfigurationMissingError("AI_API_KEY não configurada", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", apperrors.NewInternalError("Falha ao montar requisição para IA", err)
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.cfg.Backoff<<uint(attempt-1)); err != nil {
				return "", apperrors.NewUpstreamError(UpstreamFailureMessage, err)
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", apperrors.NewUpstreamError(UpstreamFailureMessage, err)
			}
		}

		content, retryable, err := c.do(ctx, body)
		if err == nil {
			logger.WithFields(logrus.Fields{
				"model":        c.cfg.Model,
				"attempts":     attempt + 1,
				"duration_ms":  time.Since(start).Milliseconds(),
				"response_len": len(content),
			}).Info("AI gateway call completed")
			return content, nil
		}

		lastErr = err
		logger.WithFields(logrus.Fields{
			"model":     c.cfg.Model,
			"attempt":   attempt + 1,
			"retryable": retryable,
		}).WithError(err).Warn("AI gateway call failed")

		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return "", apperrors.NewUpstreamError(UpstreamFailureMessage, lastErr)
}

func (c *GatewayClient) do(ctx context.Context, body []byte) (string, bool, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server error: status code %d: %s", resp.StatusCode, data)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", false, fmt.Errorf("client error: status code %d: %s", resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}

	return parsed.Choices[0].Message.Content, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
