// Package ai defines the external capability interfaces the pipeline and
// query engine depend on: text extraction, embedding, and retrieval-
// augmented answering. Each capability is a black box behind a single
// method, so the orchestration logic never depends on a specific provider.
package ai

import "context"

// Extractor extracts full text from a staged blob.
// Implementations must be thread-safe for concurrent use.
type Extractor interface {
	// ExtractText reads the blob at blobPath and returns its full text.
	// Returns an error if the blob cannot be parsed.
	ExtractText(ctx context.Context, blobPath string) (string, error)
}

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Answerer produces a retrieval-augmented answer for a question. The
// capability performs its own nearest-neighbor retrieval over embedded
// chunks and drafts an answer grounded in them.
type Answerer interface {
	// Answer returns the capability's raw structured payload for the
	// question. An empty payload means the capability produced no result;
	// the caller decides how to surface that. Decoding the payload is also
	// the caller's concern.
	Answer(ctx context.Context, question string) ([]byte, error)
}
