package models

// Chunk is one contiguous segment of a document's extracted text.
// ChunkID is a 1-based ordinal with no gaps, assigned over the segments that
// survive the minimum-length filter. Embedding is nil until computed.
type Chunk struct {
	FileName  string    `json:"fileName"`
	ChunkID   int       `json:"chunkId"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}
