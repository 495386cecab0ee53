package knowledge

import (
	"context"
	"time"
)

// Document is a tenant-scoped knowledge source (FAQ, policy page,
// product sheet) that gets chunked and embedded for retrieval.
type Document struct {
	ID        uint
	TenantID  uint
	Title     string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is one embedded fragment of a document.
type Chunk struct {
	ID         uint
	DocumentID uint
	TenantID   uint
	Ordinal    int
	Content    string
	Embedding  []float32

	// TokenCount is the rough size estimate computed at ingestion,
	// used for prompt budgeting and content diagnostics.
	TokenCount int

	CreatedAt time.Time
}

// ScoredChunk is a chunk with its vector distance to a query. Lower
// distance means closer.
type ScoredChunk struct {
	Chunk
	Distance float64
}

// Repository persists documents and their embedded chunks.
type Repository interface {
	CreateDocument(ctx context.Context, d *Document) error
	FindDocument(ctx context.Context, tenantID, documentID uint) (*Document, error)
	ListDocuments(ctx context.Context, tenantID uint) ([]*Document, error)
	DeleteDocument(ctx context.Context, tenantID, documentID uint) error

	// ReplaceChunks swaps the document's chunk set atomically so a
	// re-index never leaves a mix of old and new fragments.
	ReplaceChunks(ctx context.Context, documentID uint, chunks []*Chunk) error

	// SearchChunks returns the tenant's chunks nearest to the query
	// embedding, ordered by ascending distance.
	SearchChunks(ctx context.Context, tenantID uint, embedding []float32, limit int) ([]*ScoredChunk, error)
}
