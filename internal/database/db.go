package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

var ErrNotConfigured = errors.New("database dsn is not configured")

// Open connects to MySQL and applies pool configuration. Read replicas, when
// configured, serve queries through dbresolver; writes stay on the primary.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrNotConfigured
	}
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return nil, fmt.Errorf("%v: open: %w", config.ModuleDatabase, err)
	}

	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("%v: register replicas: %w", config.ModuleDatabase, err)
		}
		logger.Info("%v: %d read replicas registered", config.ModuleDatabase, len(replicas))
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%v: pool: %w", config.ModuleDatabase, err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	lifetime := time.Duration(cfg.MaxLifetime) * time.Minute
	sqlDB.SetConnMaxIdleTime(lifetime)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

// Migrate creates or updates the tables this service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Exchange{}); err != nil {
		return fmt.Errorf("%v: migrate: %w", config.ModuleDatabase, err)
	}
	return nil
}

// Ping verifies the primary is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return ErrNotConfigured
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
