package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-counter-deck/internal/errors"
)

func TestGeminiMissingKey(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), Config{})
	require.NoError(t, err)

	_, err = g.Analyze(context.Background(), "p")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigurationMissing))
}

func TestGeminiAnalyze(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": `{"counterName":"Gelo"}`}},
				},
			}},
		})
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer g.Close()

	out, err := g.Analyze(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, `{"counterName":"Gelo"}`, out)
	assert.Contains(t, body, "prompt text")
	assert.Contains(t, body, "especialista em Clash Royale")
}

func TestGeminiClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Backoff: time.Millisecond})
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Analyze(context.Background(), "p")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
