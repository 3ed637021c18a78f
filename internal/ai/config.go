package ai

import "errors"

// Config holds the settings shared by the capability implementations.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint, including any /v1 suffix.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// ChatModel is used by the Answerer.
	ChatModel string

	// EmbeddingModel is used by the Embedder.
	EmbeddingModel string

	// EmbeddingDimensions is the expected vector size; embeddings of any
	// other size are rejected by the pipeline.
	EmbeddingDimensions int
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("ai: base URL is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai: chat model is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai: embedding model is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return errors.New("ai: embedding dimensions must be positive")
	}
	return nil
}
