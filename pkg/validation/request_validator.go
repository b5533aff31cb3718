package validation

import (
	"unicode/utf8"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/imaging"
)

const (
	// DefaultMaxDeckTextLength bounds typed deck descriptions, in characters
	DefaultMaxDeckTextLength = 2000
	// DefaultMaxImageBytes bounds decoded screenshots
	DefaultMaxImageBytes = 8 << 20
)

// DefaultImageTypes are the screenshot formats accepted for analysis
var DefaultImageTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp", "image/gif"}

// RequestValidator checks the content of analysis requests
type RequestValidator struct {
	maxDeckTextLength int
	maxImageBytes     int
	allowedTypes      map[string]bool
}

// NewRequestValidator creates a validator with the default limits
func NewRequestValidator() *RequestValidator {
	return NewRequestValidatorWithOptions(DefaultMaxDeckTextLength, DefaultMaxImageBytes, DefaultImageTypes)
}

// NewRequestValidatorWithOptions creates a validator with custom limits
func NewRequestValidatorWithOptions(maxDeckText, maxImageBytes int, imageTypes []string) *RequestValidator {
	allowed := make(map[string]bool, len(imageTypes))
	for _, t := range imageTypes {
		allowed[t] = true
	}
	return &RequestValidator{
		maxDeckTextLength: maxDeckText,
		maxImageBytes:     maxImageBytes,
		allowedTypes:      allowed,
	}
}

// ValidateDeckText rejects descriptions longer than the configured limit
func (v *RequestValidator) ValidateDeckText(text string) error {
	if utf8.RuneCountInString(text) > v.maxDeckTextLength {
		return apperrors.NewInvalidInputError("Texto do deck muito longo", nil)
	}
	return nil
}

// ValidateImage decodes the submitted image and checks its format and size
func (v *RequestValidator) ValidateImage(image string) error {
	payload, err := imaging.DecodeDataURL(image)
	if err != nil {
		return apperrors.NewInvalidInputError("Imagem inválida", err)
	}
	if !v.allowedTypes[payload.MIMEType] {
		return apperrors.NewInvalidInputError("Formato de imagem não suportado", nil)
	}
	if len(payload.Data) > v.maxImageBytes {
		return apperrors.NewInvalidInputError("Imagem muito grande", nil)
	}
	return nil
}
