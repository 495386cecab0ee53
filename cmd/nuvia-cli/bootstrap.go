package main

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"nuvia-server/internal/config"
	"nuvia-server/internal/infrastructure/database"
	"nuvia-server/internal/infrastructure/logger"
)

// bootstrap loads the server configuration and opens the database the
// same way cmd/server does. Commands share a single environment.
func bootstrap() (*config.Config, *gorm.DB, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	db, err := database.Connect(database.Config{
		DatabaseURL:     cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Silent,
	})
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	return cfg, db, log, nil
}
