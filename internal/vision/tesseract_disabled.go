//go:build !tesseract

package vision

import "fmt"

// TesseractAvailable reports whether local OCR was compiled in
const TesseractAvailable = false

// NewTesseractExtractor fails unless the binary was built with -tags tesseract
func NewTesseractExtractor(languages ...string) (Extractor, error) {
	return nil, fmt.Errorf("tesseract backend requires building with -tags tesseract")
}
