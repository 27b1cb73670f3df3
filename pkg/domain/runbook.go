package domain

import "time"

// RunbookChunk is a retrievable passage of operational documentation.
type RunbookChunk struct {
	ID int64 `json:"id"`

	Source         string `json:"source"`
	SourceDocument string `json:"source_document"`
	ChunkIndex     int    `json:"chunk_index"`

	Title   string `json:"title"`
	Content string `json:"content"`

	Embedding []float64 `json:"-"`

	DocMetadata map[string]any `json:"doc_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
