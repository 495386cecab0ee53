package customerrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"nuvia-server/internal/domain/customer"
	"nuvia-server/internal/infrastructure/database/entities"
	"nuvia-server/internal/utils/platformerrors"
)

// Repository handles customer persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByTenantAndAddress(ctx context.Context, tenantID uint, address string) (*customer.Customer, error) {
	var entity entities.Customer
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND address = ?", tenantID, address).
		First(&entity).Error
	if err != nil {
		return nil, notFoundOrDatabase(ctx, err, "customer not found by address",
			"a1b2c3d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
	}
	return mapEntity(entity), nil
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*customer.Customer, error) {
	var entity entities.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, notFoundOrDatabase(ctx, err, "customer not found",
			"b2c3d4e5-6f7a-4b8c-9d0e-1f2a3b4c5d6e")
	}
	return mapEntity(entity), nil
}

func (r *Repository) Create(ctx context.Context, c *customer.Customer) error {
	entity := entities.Customer{
		TenantID:  c.TenantID,
		Address:   c.Address,
		Name:      c.Name,
		AutoReply: c.AutoReply,
	}
	err := r.db.WithContext(ctx).Create(&entity).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create customer",
			err,
			"c3d4e5f6-7a8b-4c9d-0e1f-2a3b4c5d6e7f",
		)
	}
	c.ID = entity.ID
	c.CreatedAt = entity.CreatedAt
	c.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) SetAutoReply(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Customer{}).
		Where("id = ?", id).
		Update("auto_reply", enabled)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update auto-reply flag",
			result.Error,
			"d4e5f6a7-8b9c-4d0e-1f2a-3b4c5d6e7f8a",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"customer not found",
			nil,
			"e5f6a7b8-9c0d-4e1f-2a3b-4c5d6e7f8a9b",
		)
	}
	return nil
}

func notFoundOrDatabase(ctx context.Context, err error, message, code string) *platformerrors.PlatformError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, message, err, code)
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError, message, err, code)
}

func mapEntity(entity entities.Customer) *customer.Customer {
	return &customer.Customer{
		ID:        entity.ID,
		TenantID:  entity.TenantID,
		Name:      entity.Name,
		Address:   entity.Address,
		AutoReply: entity.AutoReply,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}
