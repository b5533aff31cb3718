package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	apperrors "go-counter-deck/internal/errors"
)

func dataURL(format string, data []byte) string {
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestValidateDeckText(t *testing.T) {
	v := NewRequestValidator()

	if err := v.ValidateDeckText("Gigante, Bruxa, Príncipe"); err != nil {
		t.Errorf("Expected short deck text to pass, got %v", err)
	}
	if err := v.ValidateDeckText(strings.Repeat("é", DefaultMaxDeckTextLength)); err != nil {
		t.Errorf("Expected limit to count characters, got %v", err)
	}
	if err := v.ValidateDeckText(strings.Repeat("a", DefaultMaxDeckTextLength+1)); err == nil {
		t.Error("Expected long deck text to fail")
	}
}

func TestValidateImage(t *testing.T) {
	v := NewRequestValidatorWithOptions(100, 16, DefaultImageTypes)

	tests := []struct {
		name    string
		image   string
		message string
	}{
		{"png data url", dataURL("png", []byte("png")), ""},
		{"jpeg data url", dataURL("jpeg", []byte("jpg")), ""},
		{"bare base64", base64.StdEncoding.EncodeToString([]byte("raw")), ""},
		{"unsupported format", dataURL("tiff", []byte("tiff")), "Formato de imagem não suportado"},
		{"too large", dataURL("png", make([]byte, 17)), "Imagem muito grande"},
		{"not base64", "data:image/png;base64,%%%", "Imagem inválida"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateImage(tt.image)
			if tt.message == "" {
				if err != nil {
					t.Fatalf("Expected image to pass, got %v", err)
				}
				return
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidInput) {
				t.Fatalf("Expected invalid_input error, got %v", err)
			}
			if msg := err.(*apperrors.AppError).Message; msg != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, msg)
			}
		})
	}
}
