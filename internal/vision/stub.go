package vision

import "context"

// Placeholder output of the stub extractor
const StubDetectedText = "Deck de Clash Royale"

var stubLabels = []string{"Clash Royale", "Jogo de cartas", "Deck"}

// StubExtractor returns fixed data for any input and never fails.
// It is the default until a real vision backend is configured.
type StubExtractor struct{}

// NewStubExtractor creates a stub extractor
func NewStubExtractor() *StubExtractor {
	return &StubExtractor{}
}

// Extract implements Extractor
func (StubExtractor) Extract(_ context.Context, _ string) (*Extraction, error) {
	labels := make([]string, len(stubLabels))
	copy(labels, stubLabels)
	return &Extraction{DetectedText: StubDetectedText, Labels: labels}, nil
}
