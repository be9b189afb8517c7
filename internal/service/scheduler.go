package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
)

// Scheduler sweeps due campaign entries into blog-generation jobs and
// advances tenant billing cycles that have crossed their own boundary.
type Scheduler struct {
	config  *config.SchedulerConfig
	logger  *zap.Logger
	db      *gorm.DB
	jobs    *JobService
	credits *CreditService
	ticker  *time.Ticker
	stopCh  chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, db *gorm.DB, jobs *JobService, credits *CreditService) *Scheduler {
	return &Scheduler{
		config:  cfg,
		logger:  logger,
		db:      db,
		jobs:    jobs,
		credits: credits,
		stopCh:  make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.Interval)
	if err != nil {
		s.logger.Error("Invalid scheduler interval", zap.String("interval", s.config.Interval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("interval", s.config.Interval))

	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runSweep(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	now := time.Now()

	if err := s.runDueEntries(ctx, now); err != nil {
		s.logger.Error("Campaign sweep failed", zap.Error(err))
	}
	if err := s.credits.ResetDueCycles(ctx, now); err != nil {
		s.logger.Error("Billing cycle sweep failed", zap.Error(err))
	}
}

// runDueEntries spawns one blog job per due entry. The entry flip is
// guarded by its SCHEDULED status so an entry triggers at most once.
func (s *Scheduler) runDueEntries(ctx context.Context, now time.Time) error {
	var due []models.ScheduledEntry
	if err := s.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", models.EntryStatusScheduled, now).
		Order("run_at ASC").
		Limit(50).
		Find(&due).Error; err != nil {
		return err
	}

	for _, entry := range due {
		if err := s.triggerEntry(ctx, &entry); err != nil {
			s.logger.Error("Failed to trigger scheduled entry",
				zap.Uint("entry_id", entry.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (s *Scheduler) triggerEntry(ctx context.Context, entry *models.ScheduledEntry) error {
	payload := entry.Payload
	if payload == "" {
		raw, err := json.Marshal(map[string]string{"topic": entry.Topic})
		if err != nil {
			return err
		}
		payload = string(raw)
	}

	job, err := s.jobs.CreateJob(ctx, CreateJobRequest{
		TenantID: entry.TenantID,
		Kind:     models.JobKindBlogPost,
		Items: []JobItemInput{{
			UnitKey: entry.Topic,
			Payload: payload,
		}},
	})
	if err != nil {
		// Reservation denied or creation failed: the entry fails, linked
		// to no job, and does not retry.
		s.db.WithContext(ctx).Model(&models.ScheduledEntry{}).
			Where("id = ? AND status = ?", entry.ID, models.EntryStatusScheduled).
			Updates(map[string]interface{}{
				"status": models.EntryStatusFailed,
				"error":  err.Error(),
			})
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.ScheduledEntry{}).
		Where("id = ? AND status = ?", entry.ID, models.EntryStatusScheduled).
		Updates(map[string]interface{}{
			"status": models.EntryStatusCompleted,
			"job_id": job.ID,
		})
	if res.Error != nil {
		return res.Error
	}

	s.logger.Info("Scheduled entry triggered",
		zap.Uint("entry_id", entry.ID),
		zap.Uint("job_id", job.ID),
		zap.String("topic", entry.Topic))

	return nil
}
