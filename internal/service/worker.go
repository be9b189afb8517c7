package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
	"github.com/storesmith/storesmith/internal/service/processor"
	"github.com/storesmith/storesmith/pkg/util"
)

// WorkerPool runs N independent claim loops. There is no lock around
// claiming; correctness comes entirely from the conditional-update claim
// in ClaimNext, so any number of pools across processes can run safely.
type WorkerPool struct {
	jobs       *JobService
	bridge     *GenerationBridge
	processors *processor.Manager
	logger     *zap.Logger
	cfg        *config.WorkerConfig
	wg         sync.WaitGroup
	stopCh     chan struct{}
}

func NewWorkerPool(jobs *JobService, bridge *GenerationBridge, processors *processor.Manager, logger *zap.Logger, cfg *config.WorkerConfig) *WorkerPool {
	return &WorkerPool{
		jobs:       jobs,
		bridge:     bridge,
		processors: processors,
		logger:     logger,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

func (w *WorkerPool) Start(ctx context.Context) error {
	idle, err := time.ParseDuration(w.cfg.PollInterval)
	if err != nil {
		w.logger.Error("Invalid worker poll interval", zap.String("interval", w.cfg.PollInterval), zap.Error(err))
		return err
	}

	w.logger.Info("Starting worker pool", zap.Int("count", w.cfg.Count))

	for i := 0; i < w.cfg.Count; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
		w.wg.Add(1)
		go w.run(ctx, workerID, idle)
	}

	return nil
}

func (w *WorkerPool) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("Worker pool shutdown completed")
}

func (w *WorkerPool) run(ctx context.Context, workerID string, idle time.Duration) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		item, err := w.jobs.ClaimNext(ctx, workerID)
		if err != nil {
			w.logger.Error("Claim failed", zap.String("worker_id", workerID), zap.Error(err))
			w.sleep(ctx, idle)
			continue
		}
		if item == nil {
			w.sleep(ctx, idle)
			continue
		}

		w.process(ctx, workerID, item)
	}
}

func (w *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-w.stopCh:
	case <-ctx.Done():
	}
}

// process drives one claimed item through its kind processor. Synchronous
// kinds finalize here; asynchronous kinds advance to PROCESSING and are
// finalized by the generation bridge's poll sweep.
func (w *WorkerPool) process(ctx context.Context, workerID string, item *models.JobItem) {
	job, err := w.jobs.GetJobByID(ctx, item.JobID)
	if err != nil {
		w.failItem(ctx, job, item, err)
		return
	}

	proc, err := w.processors.ForKind(job.Kind)
	if err != nil {
		w.failItem(ctx, job, item, err)
		return
	}

	out, err := proc.Submit(ctx, item)
	if err != nil {
		w.failItem(ctx, job, item, err)
		return
	}

	if out.Done {
		if err := w.jobs.CompleteItem(ctx, item.ID, out.Result); err != nil {
			w.logger.Error("Failed to complete item",
				zap.String("worker_id", workerID),
				zap.Uint("item_id", item.ID),
				zap.Error(err))
			return
		}
		metricItemsCompleted.WithLabelValues(string(job.Kind)).Inc()
		return
	}

	if err := w.bridge.MarkProcessing(ctx, item.ID, out.CorrelationID); err != nil {
		w.logger.Error("Failed to mark item processing",
			zap.String("worker_id", workerID),
			zap.Uint("item_id", item.ID),
			zap.Error(err))
	}
}

func (w *WorkerPool) failItem(ctx context.Context, job *models.Job, item *models.JobItem, cause error) {
	if err := w.jobs.FailItem(ctx, item.ID, cause.Error()); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
		w.logger.Error("Failed to record item failure",
			zap.Uint("item_id", item.ID),
			zap.Error(err))
		return
	}

	kind := ""
	if job != nil {
		kind = string(job.Kind)
	}
	metricItemsFailed.WithLabelValues(kind).Inc()

	w.logger.Warn("Item failed",
		zap.Uint("item_id", item.ID),
		zap.String("unit_key", item.UnitKey),
		zap.String("error", util.Truncate(cause.Error(), 200)))
}
