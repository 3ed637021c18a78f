package models

import "time"

// DocumentStatus tracks how far a document has progressed through the
// ingestion pipeline. Each stage commits its status independently, so a
// failed run leaves the last completed stage's status behind.
type DocumentStatus string

const (
	StatusStaged   DocumentStatus = "staged"
	StatusParsed   DocumentStatus = "parsed"
	StatusChunked  DocumentStatus = "chunked"
	StatusEmbedded DocumentStatus = "embedded"
	StatusFailed   DocumentStatus = "failed"
)

// DocumentState is the observable pipeline state of one cataloged file,
// returned by the admin status endpoint. FileName is the external primary
// key (case- and whitespace-sensitive); at most one document exists per
// FileName at any time, since reprocessing deletes before rebuilding.
type DocumentState struct {
	FileName      string         `json:"fileName"`
	Status        DocumentStatus `json:"status"`
	ChunkCount    int            `json:"chunkCount"`
	EmbeddedCount int            `json:"embeddedCount"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}
