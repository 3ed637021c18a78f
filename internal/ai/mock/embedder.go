// Package mock provides test doubles for the ai capability interfaces.
// Defaults are deterministic so tests can assert on exact behavior;
// function fields allow failure injection.
package mock

import (
	"context"
	"hash/fnv"
	"sync"
)

// Embedder is a test double for ai.Embedder.
type Embedder struct {
	// EmbedTextFunc is called by EmbedText if set. If nil, a deterministic
	// vector derived from the text hash is returned.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// Dimensions sets the size of generated vectors (default 8).
	Dimensions int

	mu        sync.Mutex
	callCount int
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
func NewEmbedder() *Embedder {
	return &Embedder{Dimensions: 8}
}

// EmbedText generates a deterministic embedding based on the text hash.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	dim := m.Dimensions
	if dim <= 0 {
		dim = 8
	}
	return deterministicVector(text, dim), nil
}

// CallCount returns how many times EmbedText was called.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// deterministicVector creates a stable embedding from text via an FNV hash
// seeded linear congruential generator.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}
