//go:build tesseract

package vision

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/imaging"
	"go-counter-deck/internal/logger"
)

// TesseractAvailable reports whether local OCR was compiled in
const TesseractAvailable = true

// TesseractExtractor runs OCR locally with Tesseract and derives labels
// from the image's quality metrics.
type TesseractExtractor struct {
	languages []string
}

// NewTesseractExtractor creates a local OCR extractor
func NewTesseractExtractor(languages ...string) (Extractor, error) {
	if len(languages) == 0 {
		languages = []string{"por", "eng"}
	}
	return &TesseractExtractor{languages: languages}, nil
}

// Extract implements Extractor. A new Tesseract client is created per call
// since a client holds per-image state.
func (t *TesseractExtractor) Extract(ctx context.Context, image string) (*Extraction, error) {
	payload, err := imaging.DecodeDataURL(image)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("Imagem inválida", err)
	}

	report, err := imaging.Inspect(payload.Data)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("Imagem inválida", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamError("Erro ao analisar imagem", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, apperrors.NewConfigurationMissingError("Idioma do Tesseract indisponível", err)
	}
	if err := client.SetImageFromBytes(payload.Data); err != nil {
		return nil, apperrors.NewUpstreamError("Erro ao analisar imagem", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, apperrors.NewUpstreamError("Erro ao analisar imagem", err)
	}

	logger.WithFields(logrus.Fields{
		"format":     report.Format,
		"width":      report.Width,
		"height":     report.Height,
		"blur_score": report.BlurScore,
		"text_len":   len(text),
	}).Debug("Tesseract extraction completed")

	return &Extraction{
		DetectedText: strings.TrimSpace(text),
		Labels:       report.Labels(),
	}, nil
}
