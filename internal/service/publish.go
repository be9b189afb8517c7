package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/models"
)

// CatalogPusher commits one item's result to the external catalog/CMS.
// The core treats the result as an opaque payload.
type CatalogPusher interface {
	PushResult(ctx context.Context, item *models.JobItem) (string, error)
}

// PublishService commits completed results to the external catalog
// exactly once. Idempotence comes from the unique PublishRecord insert,
// not from client-side deduplication.
type PublishService struct {
	db     *gorm.DB
	logger *zap.Logger
	pusher CatalogPusher
}

func NewPublishService(db *gorm.DB, logger *zap.Logger, pusher CatalogPusher) *PublishService {
	return &PublishService{
		db:     db,
		logger: logger,
		pusher: pusher,
	}
}

// Publish pushes the item's result to the catalog. The PublishRecord is
// inserted before the push and rolled back with the transaction if the
// push fails, so a later retry stays possible; once the push succeeds the
// record is permanent and further calls are no-op successes.
func (s *PublishService) Publish(ctx context.Context, itemID uint) (*models.PublishRecord, error) {
	var item models.JobItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, fmt.Errorf("item not found: %w", err)
	}
	if item.Status != models.ItemStatusDone {
		return nil, ErrNotReady
	}

	record := &models.PublishRecord{
		JobItemID: item.ID,
		PushedAt:  time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			if isDuplicateKey(err) {
				return errAlreadyPublished
			}
			return fmt.Errorf("failed to create publish record: %w", err)
		}

		ref, err := s.pusher.PushResult(ctx, &item)
		if err != nil {
			return fmt.Errorf("failed to push result to catalog: %w", err)
		}

		if err := tx.Model(record).Update("external_ref", ref).Error; err != nil {
			return fmt.Errorf("failed to record external ref: %w", err)
		}
		if err := tx.Model(&models.JobItem{}).
			Where("id = ?", item.ID).
			Update("published", true).Error; err != nil {
			return fmt.Errorf("failed to flag item published: %w", err)
		}

		return nil
	})

	if errors.Is(err, errAlreadyPublished) {
		metricPublishConflicts.Inc()
		var existing models.PublishRecord
		if err := s.db.WithContext(ctx).
			Where("job_item_id = ?", item.ID).
			First(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to load existing publish record: %w", err)
		}
		s.logger.Info("Item already published, treating as success",
			zap.Uint("item_id", item.ID),
			zap.Uint("record_id", existing.ID))
		return &existing, nil
	}
	if err != nil {
		return nil, err
	}

	metricPublishes.Inc()
	s.logger.Info("Item published",
		zap.Uint("item_id", item.ID),
		zap.String("external_ref", record.ExternalRef))

	return record, nil
}

// isDuplicateKey matches unique-constraint violations across drivers
// whose dialects predate error translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}
