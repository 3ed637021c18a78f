// Package openai implements the embedding and retrieval/generation
// capabilities against OpenAI-compatible APIs via langchaingo.
package openai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/ai"
	"github.com/docuquery/backend/internal/models"
)

// topKChunks bounds how many retrieved excerpts are handed to the model.
const topKChunks = 6

const answerSystemPrompt = `You answer questions about an internal document collection.
You are given numbered excerpts retrieved from the collection. Ground your
answer strictly in the excerpts; if they do not contain the answer, say so.

Respond with a single JSON object of the form:
{"answer": "<your answer>", "sources": [{"url": "", "title": "<file name of an excerpt you used>"}]}

List each distinct file name you relied on exactly once in sources.`

// ChunkSource provides the currently embedded chunks to retrieve over.
type ChunkSource interface {
	EmbeddedChunks(ctx context.Context) ([]models.Chunk, error)
}

// Answerer implements ai.Answerer: it retrieves the nearest embedded chunks
// for the question and asks a chat model to draft a grounded answer,
// returning the model's raw JSON payload.
type Answerer struct {
	client   llms.Model
	embedder ai.Embedder
	chunks   ChunkSource
	logger   *zap.Logger
}

// NewAnswerer creates an answerer over the given chunk source.
func NewAnswerer(config *ai.Config, embedder ai.Embedder, chunks ChunkSource, logger *zap.Logger) (*Answerer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	return &Answerer{
		client:   client,
		embedder: embedder,
		chunks:   chunks,
		logger:   logger.With(zap.String("component", "openai-answerer")),
	}, nil
}

// Answer retrieves relevant chunks and generates a structured answer.
func (a *Answerer) Answer(ctx context.Context, question string) ([]byte, error) {
	retrieved, err := a.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(answerSystemPrompt)},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(question, retrieved))},
		},
	}

	response, err := a.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithJSONMode(),
	)
	if err != nil {
		a.logger.Error("generation failed", zap.Error(err))
		return nil, err
	}

	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		a.logger.Warn("model returned no choices")
		return nil, nil
	}

	return []byte(response.Choices[0].Content), nil
}

// retrieve ranks the currently embedded chunks by cosine similarity to the
// question. A document mid-reindex simply contributes whatever chunks carry
// embeddings at this moment.
func (a *Answerer) retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	queryVec, err := a.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	chunks, err := a.chunks.EmbeddedChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embedded chunks: %w", err)
	}

	type scored struct {
		chunk models.Chunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		ranked = append(ranked, scored{chunk: c, score: cosineSimilarity(queryVec, c.Embedding)})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > topKChunks {
		ranked = ranked[:topKChunks]
	}

	result := make([]models.Chunk, len(ranked))
	for i, r := range ranked {
		result[i] = r.chunk
	}
	return result, nil
}

func buildUserPrompt(question string, chunks []models.Chunk) string {
	var b strings.Builder
	if len(chunks) == 0 {
		b.WriteString("No excerpts are available in the collection.\n\n")
	}
	for i, c := range chunks {
		fmt.Fprintf(&b, "Excerpt %d (from %s):\n%s\n\n", i+1, c.FileName, c.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
