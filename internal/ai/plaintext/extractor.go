// Package plaintext provides a text-extraction capability for blobs that
// are already text: it reads the staged bytes, repairs invalid UTF-8, and
// normalizes line endings. Binary formats (scanned PDFs etc.) belong to an
// external OCR engine behind the same ai.Extractor interface.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Extractor implements ai.Extractor for text blobs.
type Extractor struct{}

// NewExtractor creates a plain-text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText reads the blob and returns its normalized text content.
func (e *Extractor) ExtractText(ctx context.Context, blobPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(blobPath)
	if err != nil {
		return "", fmt.Errorf("reading staged blob: %w", err)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	// Normalize CRLF and lone CR so line-window chunking sees one newline style.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return text, nil
}
