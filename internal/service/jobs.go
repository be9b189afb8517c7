package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
)

// JobItemInput is one unit of work in a bulk request.
type JobItemInput struct {
	UnitKey string `json:"unit_key" binding:"required"`
	Payload string `json:"payload"`
}

type CreateJobRequest struct {
	TenantID uint           `json:"tenant_id" binding:"required"`
	Kind     models.JobKind `json:"kind" binding:"required"`
	Items    []JobItemInput `json:"items" binding:"required"`
}

// JobService owns the job/item ledger: atomic creation with credit
// reservation, terminal item transitions with derived job status, and
// cancellation.
type JobService struct {
	db      *gorm.DB
	logger  *zap.Logger
	credits *CreditService
	cfg     *config.JobsConfig
}

func NewJobService(db *gorm.DB, logger *zap.Logger, credits *CreditService, cfg *config.JobsConfig) *JobService {
	return &JobService{
		db:      db,
		logger:  logger,
		credits: credits,
		cfg:     cfg,
	}
}

// ItemCost returns the per-unit credit price for a kind.
func (s *JobService) ItemCost(kind models.JobKind) int64 {
	if cost, ok := s.cfg.ItemCosts[string(kind)]; ok {
		return cost
	}
	return 1
}

// CreateJob reserves credits and persists the Job with its items in one
// transaction. A failed insert rolls the reservation back with it, so a
// reservation is never left standing without its job.
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*models.Job, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("job requires at least one item")
	}

	items := req.Items
	if len(items) > s.cfg.MaxItemsPerJob {
		s.logger.Warn("Bulk request exceeds item cap, sampling down",
			zap.Uint("tenant_id", req.TenantID),
			zap.Int("requested", len(items)),
			zap.Int("cap", s.cfg.MaxItemsPerJob))
		items = items[:s.cfg.MaxItemsPerJob]
	}

	cost := s.ItemCost(req.Kind) * int64(len(items))

	job := &models.Job{
		TenantID:    req.TenantID,
		Kind:        req.Kind,
		Status:      models.JobStatusPending,
		TotalItems:  len(items),
		CreditsCost: cost,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.credits.reserve(tx, req.TenantID, cost); err != nil {
			return err
		}

		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		rows := make([]models.JobItem, 0, len(items))
		for _, in := range items {
			rows = append(rows, models.JobItem{
				JobID:    job.ID,
				TenantID: req.TenantID,
				UnitKey:  in.UnitKey,
				Payload:  in.Payload,
				Status:   models.ItemStatusPending,
			})
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to create job items: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		zap.Uint("job_id", job.ID),
		zap.Uint("tenant_id", req.TenantID),
		zap.String("kind", string(req.Kind)),
		zap.Int("total_items", job.TotalItems),
		zap.Int64("credits_cost", cost))

	return job, nil
}

// CompleteItem records a successful result and finalizes the item.
func (s *JobService) CompleteItem(ctx context.Context, itemID uint, result string) error {
	return s.finishItem(ctx, itemID, models.ItemStatusDone, result, "")
}

// FailItem records the error and finalizes the item. Sibling items and
// the job itself are unaffected; a failed item is never re-claimed.
func (s *JobService) FailItem(ctx context.Context, itemID uint, errMsg string) error {
	return s.finishItem(ctx, itemID, models.ItemStatusFailed, "", errMsg)
}

// finishItem moves an in-flight item to a terminal state and, in the same
// transaction, bumps the matching job counter and flips the job status
// when this was the last outstanding item. The transition and the counter
// bump are conditional updates so concurrent completions from multiple
// workers cannot double-count.
func (s *JobService) finishItem(ctx context.Context, itemID uint, status models.ItemStatus, result, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finishItem requires a terminal status, got %s", status)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.JobItem
		if err := tx.Select("id", "job_id", "status").First(&item, itemID).Error; err != nil {
			return fmt.Errorf("item not found: %w", err)
		}
		if item.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		if !models.ValidItemTransition(item.Status, status) {
			return fmt.Errorf("invalid transition %s -> %s for item %d", item.Status, status, itemID)
		}

		now := time.Now()
		res := tx.Model(&models.JobItem{}).
			Where("id = ? AND status IN ?", itemID, []models.ItemStatus{models.ItemStatusRunning, models.ItemStatusProcessing}).
			Updates(map[string]interface{}{
				"status":      status,
				"result":      result,
				"error":       errMsg,
				"finished_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyTerminal
		}

		counter := "completed_items"
		if status == models.ItemStatusFailed {
			counter = "failed_items"
		}
		if err := tx.Model(&models.Job{}).
			Where("id = ?", item.JobID).
			UpdateColumn(counter, gorm.Expr(counter+" + 1")).Error; err != nil {
			return fmt.Errorf("failed to update job counter: %w", err)
		}

		var job models.Job
		if err := tx.First(&job, item.JobID).Error; err != nil {
			return fmt.Errorf("job not found: %w", err)
		}
		if job.CompletedItems+job.FailedItems < job.TotalItems {
			return nil
		}

		// Last outstanding item: derive the terminal job status. A job is
		// FAILED only when every item failed; partial failure stays DONE
		// with failed_items > 0.
		final := models.JobStatusDone
		jobErr := ""
		if job.CompletedItems == 0 {
			final = models.JobStatusFailed
			jobErr = "all items failed"
		}
		if err := tx.Model(&models.Job{}).
			Where("id = ? AND status NOT IN ?", job.ID,
				[]models.JobStatus{models.JobStatusDone, models.JobStatusFailed, models.JobStatusCanceled}).
			Updates(map[string]interface{}{
				"status":      final,
				"error":       jobErr,
				"finished_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to finalize job: %w", err)
		}

		return nil
	})
}

// CancelJob marks a job CANCELED. Items already claimed are allowed to
// finish; unclaimed PENDING items are simply never handed out because the
// claim query filters on job status.
func (s *JobService) CancelJob(ctx context.Context, publicID string, tenantID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).
		Where("public_id = ? AND tenant_id = ?", publicID, tenantID).
		First(&job).Error; err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status IN ?", job.ID,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":      models.JobStatusCanceled,
			"finished_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotCancelable
	}

	s.logger.Info("Job canceled",
		zap.Uint("job_id", job.ID),
		zap.Uint("tenant_id", tenantID))

	if err := s.db.WithContext(ctx).First(&job, job.ID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobService) GetJobByID(ctx context.Context, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	return &job, nil
}

func (s *JobService) GetJob(ctx context.Context, publicID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&job).Error; err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	return &job, nil
}

func (s *JobService) ListJobs(ctx context.Context, tenantID uint) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(100).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobService) ListItems(ctx context.Context, publicID string) ([]models.JobItem, error) {
	job, err := s.GetJob(ctx, publicID)
	if err != nil {
		return nil, err
	}

	var items []models.JobItem
	if err := s.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}
	return items, nil
}
