package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/config"
)

// StaleDetector periodically surfaces items stuck in-flight beyond the
// configured threshold. It alerts only; recovery is an operator decision
// because re-running a claimed item risks duplicate external side
// effects.
type StaleDetector struct {
	jobs      *JobService
	logger    *zap.Logger
	threshold time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
}

func NewStaleDetector(jobs *JobService, logger *zap.Logger, cfg *config.WorkerConfig) (*StaleDetector, error) {
	threshold, err := time.ParseDuration(cfg.StaleAfter)
	if err != nil {
		return nil, err
	}

	return &StaleDetector{
		jobs:      jobs,
		logger:    logger,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}, nil
}

func (d *StaleDetector) Start(ctx context.Context) {
	d.ticker = time.NewTicker(d.threshold / 2)

	go func() {
		for {
			select {
			case <-d.ticker.C:
				d.check(ctx)
			case <-d.stopCh:
				d.logger.Info("Stale detector stopped")
				return
			case <-ctx.Done():
				d.logger.Info("Stale detector context cancelled")
				return
			}
		}
	}()
}

func (d *StaleDetector) Stop() {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	close(d.stopCh)
}

func (d *StaleDetector) check(ctx context.Context) {
	count, sample, err := d.jobs.CountStaleItems(ctx, d.threshold)
	if err != nil {
		d.logger.Error("Stale item check failed", zap.Error(err))
		return
	}

	metricStaleItems.Set(float64(count))

	if count == 0 {
		return
	}

	ids := make([]uint, 0, len(sample))
	for _, item := range sample {
		ids = append(ids, item.ID)
	}

	d.logger.Warn("Stale in-flight items detected",
		zap.Int64("count", count),
		zap.Duration("threshold", d.threshold),
		zap.Uints("sample_ids", ids))
}
