package tenantrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/infrastructure/database/entities"
	"nuvia-server/internal/utils/platformerrors"
)

// Repository handles tenant persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var entity entities.Tenant
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("slug = ?", slug).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"tenant not found",
				err,
				"c41a7f2b-9d3e-4b6a-8c5f-0e1d2a3b4c5d",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find tenant by slug",
			err,
			"f8b2c3d4-1a5e-4f6b-9c7d-8e9f0a1b2c3d",
		)
	}
	return mapEntity(entity), nil
}

func (r *Repository) EnsureBySlug(ctx context.Context, slug, nameFallback string) (*tenant.Tenant, error) {
	entity := entities.Tenant{Slug: slug, Name: nameFallback}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(&entity).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to ensure tenant",
			err,
			"3e4f5a6b-7c8d-4e9f-0a1b-2c3d4e5f6a7b",
		)
	}
	return r.FindBySlug(ctx, slug)
}

func mapEntity(entity entities.Tenant) *tenant.Tenant {
	t := &tenant.Tenant{
		ID:            entity.ID,
		Slug:          entity.Slug,
		Name:          entity.Name,
		DisplayNumber: entity.DisplayNumber,
		CreatedAt:     entity.CreatedAt,
		UpdatedAt:     entity.UpdatedAt,
	}
	if p := entity.Profile; p != nil {
		t.Profile = &tenant.BotProfile{
			ID:                  p.ID,
			TenantID:            p.TenantID,
			SystemPrompt:        p.SystemPrompt,
			ContextPrompt:       p.ContextPrompt,
			HistoryPrompt:       p.HistoryPrompt,
			OutputStyle:         p.OutputStyle,
			ChatModel:           p.ChatModel,
			EmbeddingModel:      p.EmbeddingModel,
			Temperature:         p.Temperature,
			TopP:                p.TopP,
			PresencePenalty:     p.PresencePenalty,
			FrequencyPenalty:    p.FrequencyPenalty,
			MaxCompletionTokens: p.MaxCompletionTokens,
			HistoryWindowSize:   p.HistoryWindowSize,
			UpdatedAt:           p.UpdatedAt,
		}
	}
	return t
}
