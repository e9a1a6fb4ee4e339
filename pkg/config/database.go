package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to postgres and applies pending migrations.
func OpenDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	return OpenDatabaseDSN(cfg.DSN())
}

// OpenDatabaseDSN is OpenDatabase for a ready-made DSN.
func OpenDatabaseDSN(dsn string) (*gorm.DB, error) {
	db, err := ConnectDatabase(dsn)
	if err != nil {
		return nil, err
	}

	if err := ExecuteMigrations(db); err != nil {
		return nil, err
	}

	log.Info("Database ready")
	return db, nil
}

// ConnectDatabase opens the pool without touching the schema.
func ConnectDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// CloseDatabase releases the pool behind db.
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
