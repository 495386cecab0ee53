package knowledgerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/infrastructure/database/entities"
	"nuvia-server/internal/utils/functional"
	"nuvia-server/internal/utils/platformerrors"
)

// Repository handles knowledge document and chunk persistence. Chunk
// embeddings live in a pgvector column written and queried through raw
// SQL with vector literals.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateDocument(ctx context.Context, d *knowledge.Document) error {
	entity := entities.KnowledgeDocument{
		TenantID: d.TenantID,
		Title:    d.Title,
		Source:   d.Source,
	}
	if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to create knowledge document", err,
			"2e3f4a5b-6c7d-4e8f-9a0b-1c2d3e4f5a6b")
	}
	d.ID = entity.ID
	d.CreatedAt = entity.CreatedAt
	d.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) FindDocument(ctx context.Context, tenantID, documentID uint) (*knowledge.Document, error) {
	var entity entities.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, documentID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "knowledge document not found", err,
				"3f4a5b6c-7d8e-4f9a-0b1c-2d3e4f5a6b7c")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to find knowledge document", err,
			"4a5b6c7d-8e9f-4a0b-1c2d-3e4f5a6b7c8d")
	}
	return mapDocument(entity), nil
}

func (r *Repository) ListDocuments(ctx context.Context, tenantID uint) ([]*knowledge.Document, error) {
	var rows []entities.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to list knowledge documents", err,
			"5b6c7d8e-9f0a-4b1c-2d3e-4f5a6b7c8d9e")
	}
	return functional.Map(rows, mapDocument), nil
}

func (r *Repository) DeleteDocument(ctx context.Context, tenantID, documentID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).
			Delete(&entities.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, documentID).
			Delete(&entities.KnowledgeDocument{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "knowledge document not found", nil,
				"6c7d8e9f-0a1b-4c2d-3e4f-5a6b7c8d9e0f")
		}
		return nil
	})
}

// ReplaceChunks swaps the document's chunks inside one transaction so
// searches never observe a half-indexed document.
func (r *Repository) ReplaceChunks(ctx context.Context, documentID uint, chunks []*knowledge.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).
			Delete(&entities.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		for _, c := range chunks {
			err := tx.Exec(`
				INSERT INTO knowledge_chunks (document_id, tenant_id, ordinal, content, token_count, embedding, created_at)
				VALUES (?, ?, ?, ?, ?, ?::vector, NOW())
			`, c.DocumentID, c.TenantID, c.Ordinal, c.Content, c.TokenCount, embeddingToString(c.Embedding)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) SearchChunks(ctx context.Context, tenantID uint, embedding []float32, limit int) ([]*knowledge.ScoredChunk, error) {
	var rows []struct {
		entities.KnowledgeChunk
		Distance float64 `db:"distance"`
	}

	vec := embeddingToString(embedding)
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id, document_id, tenant_id, ordinal, content, token_count, created_at,
			embedding <=> ?::vector AS distance
		FROM knowledge_chunks
		WHERE tenant_id = ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?
	`, vec, tenantID, vec, limit).Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to search knowledge chunks", err,
			"7d8e9f0a-1b2c-4d3e-4f5a-6b7c8d9e0f1a")
	}

	out := make([]*knowledge.ScoredChunk, len(rows))
	for i, row := range rows {
		out[i] = &knowledge.ScoredChunk{
			Chunk: knowledge.Chunk{
				ID:         row.ID,
				DocumentID: row.DocumentID,
				TenantID:   row.TenantID,
				Ordinal:    row.Ordinal,
				Content:    row.Content,
				TokenCount: row.TokenCount,
				CreatedAt:  row.CreatedAt,
			},
			Distance: row.Distance,
		}
	}
	return out, nil
}

func mapDocument(entity entities.KnowledgeDocument) *knowledge.Document {
	return &knowledge.Document{
		ID:        entity.ID,
		TenantID:  entity.TenantID,
		Title:     entity.Title,
		Source:    entity.Source,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

// embeddingToString converts embeddings to a pgvector literal.
func embeddingToString(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, val := range embedding {
		parts[i] = fmt.Sprintf("%f", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
