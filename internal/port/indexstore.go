package port

import "github.com/cd8875/clinical-ai-assistant/internal/domain"

// IndexStore is the durable backing of the vector index.
// Vectors and document metadata load independently; a missing store loads as empty.
type IndexStore interface {
	LoadChunks() ([]domain.Chunk, error)

	LoadDocuments() (map[string]domain.Metadata, error)

	// PutDocument persists a document and all of its chunks atomically.
	PutDocument(doc domain.Document, chunks []domain.Chunk) error

	// DeleteDocument removes the document's metadata and source text. Chunks are kept.
	DeleteDocument(id string) error

	DocumentText(id string) (string, error)

	// ReplaceChunks swaps the whole persisted vector set atomically.
	ReplaceChunks(chunks []domain.Chunk) error

	// ResetDocuments drops all document metadata. Used to recover from an unreadable metadata store.
	ResetDocuments() error

	Close() error
}
