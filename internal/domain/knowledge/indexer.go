package knowledge

import (
	"context"

	"github.com/rs/zerolog"

	"nuvia-server/internal/utils/platformerrors"
)

// embedBatchSize keeps embedding requests within provider payload limits.
const embedBatchSize = 8

// BatchEmbedder embeds several texts in one request.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Indexer ingests documents: splits content, embeds the fragments in
// batches, and swaps the stored chunk set atomically.
type Indexer struct {
	repo     Repository
	embedder BatchEmbedder
	log      zerolog.Logger
}

func NewIndexer(repo Repository, embedder BatchEmbedder, log zerolog.Logger) *Indexer {
	return &Indexer{
		repo:     repo,
		embedder: embedder,
		log:      log.With().Str("component", "knowledge-indexer").Logger(),
	}
}

// Ingest stores a new document and indexes its content.
func (i *Indexer) Ingest(ctx context.Context, tenantID uint, title, source, embeddingModel, content string) (*Document, error) {
	doc := &Document{TenantID: tenantID, Title: title, Source: source}
	if err := i.repo.CreateDocument(ctx, doc); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create document")
	}
	if err := i.Reindex(ctx, doc, embeddingModel, content); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reindex rebuilds the document's chunks from fresh content.
func (i *Indexer) Reindex(ctx context.Context, doc *Document, embeddingModel, content string) error {
	fragments := SplitContent(content)
	if len(fragments) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "document content is empty", nil, "")
	}

	chunks := make([]*Chunk, 0, len(fragments))
	for start := 0; start < len(fragments); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch := fragments[start:end]

		embeddings, err := i.embedder.EmbedBatch(ctx, embeddingModel, batch)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "embed document fragments")
		}
		if len(embeddings) != len(batch) {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain,
				platformerrors.ErrorTypeExternal, "embedding count mismatch", nil, "")
		}

		for j, text := range batch {
			chunks = append(chunks, &Chunk{
				DocumentID: doc.ID,
				TenantID:   doc.TenantID,
				Ordinal:    start + j,
				Content:    text,
				Embedding:  embeddings[j],
				TokenCount: EstimateTokens(text),
			})
		}
	}

	if err := i.repo.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "replace document chunks")
	}
	i.log.Info().Uint("document_id", doc.ID).Int("chunks", len(chunks)).Msg("document indexed")
	return nil
}
