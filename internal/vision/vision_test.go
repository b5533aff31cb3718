package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-counter-deck/internal/errors"
)

func TestStubExtractorNeverFails(t *testing.T) {
	s := NewStubExtractor()
	for _, input := range []string{"", "garbage", "data:image/png;base64,AAAA"} {
		out, err := s.Extract(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, StubDetectedText, out.DetectedText)
		assert.Equal(t, []string{"Clash Royale", "Jogo de cartas", "Deck"}, out.Labels)
	}

	// callers may mutate the returned labels
	out, _ := s.Extract(context.Background(), "")
	out.Labels[0] = "changed"
	again, _ := s.Extract(context.Background(), "")
	assert.Equal(t, "Clash Royale", again.Labels[0])
}

func TestGoogleExtractorSuccess(t *testing.T) {
	var got annotateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		assert.Equal(t, "vision-key", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"responses":[{
			"textAnnotations":[{"description":"Gigante\nMago"},{"description":"Gigante"}],
			"labelAnnotations":[{"description":"Game","score":0.9},{"description":"Screenshot","score":0.8}]
		}]}`))
	}))
	defer srv.Close()

	g := NewGoogleExtractor("vision-key", srv.URL, 0)
	out, err := g.Extract(context.Background(), "data:image/png;base64,QUJD")
	require.NoError(t, err)

	assert.Equal(t, "Gigante\nMago", out.DetectedText)
	assert.Equal(t, []string{"Game", "Screenshot"}, out.Labels)

	require.Len(t, got.Requests, 1)
	assert.Equal(t, "QUJD", got.Requests[0].Image.Content)
	assert.Equal(t, []annotateFeature{
		{Type: "TEXT_DETECTION", MaxResults: 10},
		{Type: "LABEL_DETECTION", MaxResults: 10},
	}, got.Requests[0].Features)
}

func TestGoogleExtractorEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responses":[{}]}`))
	}))
	defer srv.Close()

	out, err := NewGoogleExtractor("k", srv.URL, 0).Extract(context.Background(), "QUJD")
	require.NoError(t, err)
	assert.Empty(t, out.DetectedText)
	assert.Empty(t, out.Labels)
}

func TestGoogleExtractorUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := NewGoogleExtractor("k", srv.URL, 0).Extract(context.Background(), "QUJD")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
	assert.Equal(t, UpstreamFailureMessage, apperrors.AsAppError(err).Message)
}

func TestGoogleExtractorMissingKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := NewGoogleExtractor("", srv.URL, 0).Extract(context.Background(), "QUJD")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigurationMissing))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestTesseractBuildTag(t *testing.T) {
	ext, err := NewTesseractExtractor()
	if TesseractAvailable {
		assert.NoError(t, err)
		assert.NotNil(t, ext)
		return
	}
	assert.Error(t, err)
	assert.Nil(t, ext)
}
