package sessionrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"nuvia-server/internal/domain/session"
	"nuvia-server/internal/infrastructure/database/entities"
	"nuvia-server/internal/utils/platformerrors"
)

// Repository handles session persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindOpen(ctx context.Context, tenantID, customerID uint, channel string) (*session.Session, error) {
	var entity entities.Session
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND channel = ? AND status = ?",
			tenantID, customerID, channel, string(session.StatusOpen)).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "open session not found", err,
				"1f2a3b4c-5d6e-4f7a-8b9c-0d1e2f3a4b5c")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to find open session", err,
			"2a3b4c5d-6e7f-4a8b-9c0d-1e2f3a4b5c6d")
	}
	return mapEntity(entity), nil
}

// CreateIfAbsent races through the partial unique index: the insert
// carries ON CONFLICT DO NOTHING against the one-open-session predicate,
// and the follow-up read returns whichever row survived.
func (r *Repository) CreateIfAbsent(ctx context.Context, s *session.Session) (*session.Session, error) {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO sessions (tenant_id, customer_id, address, channel, status, opened_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON CONFLICT (tenant_id, customer_id, channel) WHERE status = 'OPEN' DO NOTHING
	`, s.TenantID, s.CustomerID, s.Address, s.Channel, string(s.Status), s.OpenedAt).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to create session", err,
			"3b4c5d6e-7f8a-4b9c-0d1e-2f3a4b5c6d7e")
	}
	return r.FindOpen(ctx, s.TenantID, s.CustomerID, s.Channel)
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*session.Session, error) {
	var entity entities.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound, "session not found", err,
				"4c5d6e7f-8a9b-4c0d-1e2f-3a4b5c6d7e8f")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to find session", err,
			"5d6e7f8a-9b0c-4d1e-2f3a-4b5c6d7e8f9a")
	}
	return mapEntity(entity), nil
}

func (r *Repository) Update(ctx context.Context, s *session.Session) error {
	err := r.db.WithContext(ctx).
		Model(&entities.Session{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"status":         string(s.Status),
			"closed_at":      s.ClosedAt,
			"last_ticket_id": s.LastTicketID,
			"last_ticket_at": s.LastTicketAt,
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError, "failed to update session", err,
			"6e7f8a9b-0c1d-4e2f-3a4b-5c6d7e8f9a0b")
	}
	return nil
}

func mapEntity(entity entities.Session) *session.Session {
	return &session.Session{
		ID:           entity.ID,
		TenantID:     entity.TenantID,
		CustomerID:   entity.CustomerID,
		Address:      entity.Address,
		Channel:      entity.Channel,
		Status:       session.Status(entity.Status),
		OpenedAt:     entity.OpenedAt,
		ClosedAt:     entity.ClosedAt,
		LastTicketID: entity.LastTicketID,
		LastTicketAt: entity.LastTicketAt,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}
