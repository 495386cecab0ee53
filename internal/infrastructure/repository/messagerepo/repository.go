package messagerepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/infrastructure/database/entities"
	"nuvia-server/internal/utils/platformerrors"
)

// Repository handles message ledger persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertByExternalID inserts the message unless (tenant_id, external_id)
// already exists. The unique index absorbs concurrent webhook replays;
// losers of the race read back the surviving row.
func (r *Repository) UpsertByExternalID(ctx context.Context, m *message.Message) (*message.Message, bool, error) {
	entity := newSchema(m)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&entity)
	if result.Error != nil {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to upsert message", result.Error,
			"7f8a9b0c-1d2e-4f3a-4b5c-6d7e8f9a0b1c")
	}

	if result.RowsAffected == 0 {
		existing, err := r.FindByExternalID(ctx, m.TenantID, m.ExternalID)
		if err != nil {
			return nil, false, err
		}
		// A repeat delivery may carry metadata the first write lacked.
		// Mutable fields take the latest write; status stays under
		// ApplyStatus so a replay cannot regress the delivery ladder.
		updates := map[string]any{
			"body":                 m.Body,
			"media_url":            coalesce(m.MediaURL, existing.MediaURL),
			"reply_to_external_id": coalesce(m.ReplyToExternalID, existing.ReplyToExternalID),
			"sent_at":              m.SentAt,
		}
		err = r.db.WithContext(ctx).Model(&entities.Message{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error
		if err != nil {
			return nil, false, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError, "failed to refresh message", err,
				"4f5a6b7c-8d9e-4f0a-1b2c-3d4e5f6a7b8c")
		}
		existing.Body = m.Body
		existing.MediaURL = coalesce(m.MediaURL, existing.MediaURL)
		existing.ReplyToExternalID = coalesce(m.ReplyToExternalID, existing.ReplyToExternalID)
		existing.SentAt = m.SentAt
		return existing, false, nil
	}
	return mapEntity(entity), true, nil
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (r *Repository) FindByExternalID(ctx context.Context, tenantID uint, externalID string) (*message.Message, error) {
	var entity entities.Message
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "message not found", err,
				"8a9b0c1d-2e3f-4a4b-5c6d-7e8f9a0b1c2d")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to find message", err,
			"9b0c1d2e-3f4a-4b5c-6d7e-8f9a0b1c2d3e")
	}
	return mapEntity(entity), nil
}

func (r *Repository) Update(ctx context.Context, m *message.Message) error {
	err := r.db.WithContext(ctx).
		Model(&entities.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"external_id":  m.ExternalID,
			"media_url":    m.MediaURL,
			"status":       string(m.Status),
			"status_at":    m.StatusAt,
			"failure_code": m.FailureCode,
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to update message", err,
			"0c1d2e3f-4a5b-4c6d-7e8f-9a0b1c2d3e4f")
	}
	return nil
}

func (r *Repository) RecentBySession(ctx context.Context, sessionID uint, limit int) ([]*message.Message, error) {
	var rows []entities.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to load session messages", err,
			"1d2e3f4a-5b6c-4d7e-8f9a-0b1c2d3e4f5a")
	}

	// Reverse to oldest-first for prompt assembly.
	out := make([]*message.Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = mapEntity(row)
	}
	return out, nil
}

func newSchema(m *message.Message) entities.Message {
	return entities.Message{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ExternalID:        m.ExternalID,
		SessionID:         m.SessionID,
		CustomerID:        m.CustomerID,
		Direction:         string(m.Direction),
		Kind:              string(m.Kind),
		Body:              m.Body,
		ReplyToExternalID: m.ReplyToExternalID,
		MediaURL:          m.MediaURL,
		Status:            string(m.Status),
		StatusAt:          m.StatusAt,
		FailureCode:       m.FailureCode,
		SentAt:            m.SentAt,
	}
}

func mapEntity(entity entities.Message) *message.Message {
	return &message.Message{
		ID:                entity.ID,
		TenantID:          entity.TenantID,
		SessionID:         entity.SessionID,
		CustomerID:        entity.CustomerID,
		ExternalID:        entity.ExternalID,
		Direction:         message.Direction(entity.Direction),
		Kind:              message.ContentKind(entity.Kind),
		Body:              entity.Body,
		ReplyToExternalID: entity.ReplyToExternalID,
		MediaURL:          entity.MediaURL,
		Status:            message.DeliveryStatus(entity.Status),
		StatusAt:          entity.StatusAt,
		FailureCode:       entity.FailureCode,
		SentAt:            entity.SentAt,
		CreatedAt:         entity.CreatedAt,
		UpdatedAt:         entity.UpdatedAt,
	}
}
