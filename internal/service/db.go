package service

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
)

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema and the partial indexes that keep claim
// latency flat as the item table grows.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Job{},
		&models.JobItem{},
		&models.PublishRecord{},
		&models.ScheduledCampaign{},
		&models.ScheduledEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_job_items_pending ON job_items (status, id) WHERE status = 'PENDING'`,
		`CREATE INDEX IF NOT EXISTS idx_job_items_active ON job_items (tenant_id, status, id) WHERE status IN ('PENDING', 'RUNNING', 'PROCESSING')`,
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
