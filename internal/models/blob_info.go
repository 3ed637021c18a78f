package models

import "time"

// BlobInfo describes a staged blob. It is written as a msgpack sidecar next
// to the blob itself so the stage can be inspected without opening the
// catalog.
type BlobInfo struct {
	Ref         string    `json:"ref" msgpack:"ref"`
	FileName    string    `json:"fileName" msgpack:"file_name"`
	Size        int64     `json:"size" msgpack:"size"`
	SHA256      string    `json:"sha256" msgpack:"sha256"`
	ContentType string    `json:"contentType,omitempty" msgpack:"content_type"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploaded_at"`
}
