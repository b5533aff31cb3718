package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/imaging"
	"go-counter-deck/internal/logger"
)

// DefaultGoogleVisionURL is the public Vision API endpoint
const DefaultGoogleVisionURL = "https://vision.googleapis.com"

const maxResults = 10

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateImageRequest struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"responses"`
}

// GoogleExtractor calls the Google Cloud Vision images:annotate endpoint
type GoogleExtractor struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleExtractor creates a Google Vision extractor. A missing key is
// reported on the first Extract call.
func NewGoogleExtractor(apiKey, baseURL string, timeout time.Duration) *GoogleExtractor {
	if baseURL == "" {
		baseURL = DefaultGoogleVisionURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleExtractor{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Extract implements Extractor with TEXT_DETECTION and LABEL_DETECTION
func (g *GoogleExtractor) Extract(ctx context.Context, image string) (*Extraction, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewConfigurationMissingError("GOOGLE_VISION_API_KEY não configurada", nil)
	}

	body, err := json.Marshal(annotateRequest{
		Requests: []annotateImageRequest{{
			Image: annotateImage{Content: imaging.StripDataURLPrefix(image)},
			Features: []annotateFeature{
				{Type: "TEXT_DETECTION", MaxResults: maxResults},
				{Type: "LABEL_DETECTION", MaxResults: maxResults},
			},
		}},
	})
	if err != nil {
		return nil, apperrors.NewInternalError("Falha ao montar requisição de visão", err)
	}

	endpoint := g.baseURL + "/v1/images:annotate?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("Falha ao montar requisição de visão", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError(UpstreamFailureMessage, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamError(UpstreamFailureMessage, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(data),
		}).Error("Google Vision API error")
		return nil, apperrors.NewUpstreamError(UpstreamFailureMessage, fmt.Errorf("status code %d", resp.StatusCode))
	}

	var parsed annotateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperrors.NewUpstreamError(UpstreamFailureMessage, fmt.Errorf("failed to parse response: %w", err))
	}

	out := &Extraction{Labels: []string{}}
	if len(parsed.Responses) == 0 {
		return out, nil
	}
	first := parsed.Responses[0]
	if first.Error != nil {
		return nil, apperrors.NewUpstreamError(UpstreamFailureMessage, fmt.Errorf("vision error %d: %s", first.Error.Code, first.Error.Message))
	}
	if len(first.TextAnnotations) > 0 {
		out.DetectedText = first.TextAnnotations[0].Description
	}
	for _, l := range first.LabelAnnotations {
		out.Labels = append(out.Labels, l.Description)
	}

	logger.WithFields(logrus.Fields{
		"text_len": len(out.DetectedText),
		"labels":   len(out.Labels),
	}).Debug("Google Vision extraction completed")
	return out, nil
}
