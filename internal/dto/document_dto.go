package dto

import (
	"time"

	"github.com/google/uuid"
)

type IngestDocumentRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Source  string `json:"source,omitempty"`
	Content string `json:"content" validate:"required,min=1"`
}

type IngestDocumentResponse struct {
	Id     uuid.UUID `json:"id"`
	Chunks int       `json:"chunks"`
}

type GetDocumentResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	Chunks    int64     `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

type ReloadDatasetRequest struct {
	Path string `json:"path" validate:"required"`
}

type ReloadDatasetResponse struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// EmbedDocumentChunkMessage travels on the embedding topic from ingestion to
// the consumer.
type EmbedDocumentChunkMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
}
