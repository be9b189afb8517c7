package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
	"github.com/storesmith/storesmith/internal/service/processor"
)

// GenerationBridge owns the second phase of asynchronous kinds: a
// periodic sweep polls every PROCESSING item's correlation id and
// finalizes the item on completion or failure. All state lives in the
// persisted item, so a restart resumes polling where it left off.
type GenerationBridge struct {
	db         *gorm.DB
	logger     *zap.Logger
	jobs       *JobService
	processors *processor.Manager
	cfg        *config.BridgeConfig
	ticker     *time.Ticker
	stopCh     chan struct{}
}

func NewGenerationBridge(db *gorm.DB, logger *zap.Logger, jobs *JobService, processors *processor.Manager, cfg *config.BridgeConfig) *GenerationBridge {
	return &GenerationBridge{
		db:         db,
		logger:     logger,
		jobs:       jobs,
		processors: processors,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// MarkProcessing advances a claimed item to PROCESSING with its
// correlation id. The flip is guarded by status = RUNNING, so a second
// submit for the same item can never happen.
func (b *GenerationBridge) MarkProcessing(ctx context.Context, itemID uint, correlationID string) error {
	res := b.db.WithContext(ctx).Model(&models.JobItem{}).
		Where("id = ? AND status = ?", itemID, models.ItemStatusRunning).
		Updates(map[string]interface{}{
			"status":         models.ItemStatusProcessing,
			"correlation_id": correlationID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark item processing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubmitConflict
	}

	metricGenerationSubmits.Inc()
	return nil
}

func (b *GenerationBridge) Start(ctx context.Context) error {
	interval, err := time.ParseDuration(b.cfg.PollInterval)
	if err != nil {
		b.logger.Error("Invalid bridge poll interval", zap.String("interval", b.cfg.PollInterval), zap.Error(err))
		return err
	}

	b.logger.Info("Starting generation bridge", zap.String("poll_interval", b.cfg.PollInterval))

	b.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-b.ticker.C:
				if err := b.sweep(ctx); err != nil {
					b.logger.Error("Generation poll sweep failed", zap.Error(err))
				}
			case <-b.stopCh:
				b.logger.Info("Generation bridge stopped")
				return
			case <-ctx.Done():
				b.logger.Info("Generation bridge context cancelled")
				return
			}
		}
	}()

	return nil
}

func (b *GenerationBridge) Stop() {
	if b.ticker != nil {
		b.ticker.Stop()
	}
	close(b.stopCh)
	b.logger.Info("Generation bridge shutdown completed")
}

// sweep polls a batch of PROCESSING items, oldest poll first. Items that
// reached a terminal state in the meantime are simply no longer selected,
// which makes a repeated poll for a finished correlation id a no-op.
func (b *GenerationBridge) sweep(ctx context.Context) error {
	var items []models.JobItem
	if err := b.db.WithContext(ctx).
		Where("status = ?", models.ItemStatusProcessing).
		Order("updated_at ASC").
		Limit(b.cfg.BatchSize).
		Find(&items).Error; err != nil {
		return fmt.Errorf("failed to list processing items: %w", err)
	}

	for _, item := range items {
		if err := b.pollItem(ctx, &item); err != nil {
			b.logger.Error("Failed to poll item",
				zap.Uint("item_id", item.ID),
				zap.String("correlation_id", item.CorrelationID),
				zap.Error(err))
		}
	}

	return nil
}

func (b *GenerationBridge) pollItem(ctx context.Context, item *models.JobItem) error {
	job, err := b.jobs.GetJobByID(ctx, item.JobID)
	if err != nil {
		return err
	}

	proc, err := b.processors.ForKind(job.Kind)
	if err != nil {
		return err
	}

	metricGenerationPolls.Inc()
	status, err := proc.Poll(ctx, item)
	if err != nil {
		// Provider hiccup: leave the item PROCESSING for the next sweep.
		return err
	}

	switch status.State {
	case processor.GenerationStateCompleted:
		if err := b.jobs.CompleteItem(ctx, item.ID, status.Result); err != nil {
			if errors.Is(err, ErrAlreadyTerminal) {
				return nil
			}
			return err
		}
		metricItemsCompleted.WithLabelValues(string(job.Kind)).Inc()
		b.logger.Info("Generation completed",
			zap.Uint("item_id", item.ID),
			zap.String("correlation_id", item.CorrelationID))
	case processor.GenerationStateFailed:
		if err := b.jobs.FailItem(ctx, item.ID, status.Error); err != nil {
			if errors.Is(err, ErrAlreadyTerminal) {
				return nil
			}
			return err
		}
		metricItemsFailed.WithLabelValues(string(job.Kind)).Inc()
		b.logger.Warn("Generation failed",
			zap.Uint("item_id", item.ID),
			zap.String("correlation_id", item.CorrelationID),
			zap.String("error", status.Error))
	}

	return nil
}
