package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"nuvia-server/internal/infrastructure/database/entities"
)

// AutoMigrate applies the schema plus the constraints gorm tags cannot
// express: the pgvector extension and column, and the partial unique
// index that makes session opening race-free.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Tenant{},
		&entities.BotProfile{},
		&entities.Customer{},
		&entities.Session{},
		&entities.Message{},
		&entities.KnowledgeDocument{},
		&entities.KnowledgeChunk{},
	); err != nil {
		return err
	}

	// One OPEN session per (tenant, customer, channel). Concurrent
	// opens hit this index and converge on the surviving row.
	if err := db.WithContext(ctx).Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_open
		ON sessions (tenant_id, customer_id, channel)
		WHERE status = 'OPEN'
	`).Error; err != nil {
		return err
	}

	if err := db.WithContext(ctx).Exec(
		"ALTER TABLE knowledge_chunks ADD COLUMN IF NOT EXISTS embedding vector",
	).Error; err != nil {
		return err
	}

	log.Info().Msg("applied conversation engine migrations")
	return nil
}
