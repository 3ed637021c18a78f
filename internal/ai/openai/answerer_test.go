package openai

import (
	"math"
	"strings"
	"testing"

	"github.com/docuquery/backend/internal/ai"
	"github.com/docuquery/backend/internal/ai/mock"
	"github.com/docuquery/backend/internal/models"
)

func testConfig() *ai.Config {
	return &ai.Config{
		BaseURL:             "http://localhost:1/v1",
		APIKey:              "test-key",
		ChatModel:           "gpt-4o-mini",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 8,
	}
}

func TestConstructorsAcceptNilLogger(t *testing.T) {
	t.Run("embedder", func(t *testing.T) {
		if _, err := NewEmbedder(testConfig(), nil); err != nil {
			t.Fatalf("NewEmbedder with nil logger failed: %v", err)
		}
	})

	t.Run("answerer", func(t *testing.T) {
		if _, err := NewAnswerer(testConfig(), mock.NewEmbedder(), nil, nil); err != nil {
			t.Fatalf("NewAnswerer with nil logger failed: %v", err)
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 2}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty vectors", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	t.Run("numbers excerpts and ends with the question", func(t *testing.T) {
		chunks := []models.Chunk{
			{FileName: "a.txt", ChunkID: 1, Text: "first excerpt"},
			{FileName: "b.txt", ChunkID: 4, Text: "second excerpt"},
		}
		prompt := buildUserPrompt("what now?", chunks)

		if !strings.Contains(prompt, "Excerpt 1 (from a.txt):\nfirst excerpt") {
			t.Errorf("first excerpt missing or misnumbered:\n%s", prompt)
		}
		if !strings.Contains(prompt, "Excerpt 2 (from b.txt):\nsecond excerpt") {
			t.Errorf("second excerpt missing or misnumbered:\n%s", prompt)
		}
		if !strings.HasSuffix(prompt, "Question: what now?") {
			t.Errorf("prompt should end with the question:\n%s", prompt)
		}
	})

	t.Run("empty corpus is stated explicitly", func(t *testing.T) {
		prompt := buildUserPrompt("anything?", nil)
		if !strings.Contains(prompt, "No excerpts are available") {
			t.Errorf("empty corpus not surfaced:\n%s", prompt)
		}
	})
}
