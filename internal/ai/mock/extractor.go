package mock

import (
	"context"
	"os"
)

// Extractor is a test double for ai.Extractor.
type Extractor struct {
	// ExtractTextFunc is called by ExtractText if set. If nil, the blob is
	// read verbatim.
	ExtractTextFunc func(ctx context.Context, blobPath string) (string, error)
}

// NewExtractor creates a mock extractor that reads blobs verbatim.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText returns the configured result or the raw blob content.
func (m *Extractor) ExtractText(ctx context.Context, blobPath string) (string, error) {
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, blobPath)
	}

	data, err := os.ReadFile(blobPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
