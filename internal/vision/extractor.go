// Package vision extracts text and descriptive labels from deck screenshots.
package vision

import "context"

// Extraction is what a vision backend recovered from an image
type Extraction struct {
	DetectedText string
	Labels       []string
}

// Extractor recovers text and labels from a base64 image or data URL
type Extractor interface {
	Extract(ctx context.Context, image string) (*Extraction, error)
}

// UpstreamFailureMessage is reported when a vision backend fails
const UpstreamFailureMessage = "Erro ao analisar imagem com Google Vision"
