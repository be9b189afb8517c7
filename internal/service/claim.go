package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
)

// claimCandidates bounds how many ranked rows one claim attempt inspects
// before giving up for this round.
const claimCandidates = 5

// candidateQuery ranks PENDING items so that the tenant with the fewest
// in-flight items is served first, tie-broken by item creation order.
// This is the two-step approximation of max-min fairness: rank candidates
// by (tenant running-count asc, id asc), then win the row with a
// conditional status flip.
const candidateQuery = `
SELECT ji.id
FROM job_items ji
JOIN jobs j ON j.id = ji.job_id
LEFT JOIN (
	SELECT tenant_id, COUNT(*) AS active
	FROM job_items
	WHERE status IN ('RUNNING', 'PROCESSING')
	GROUP BY tenant_id
) r ON r.tenant_id = ji.tenant_id
WHERE ji.status = 'PENDING' AND j.status IN ('PENDING', 'RUNNING')
ORDER BY COALESCE(r.active, 0) ASC, ji.id ASC
LIMIT ?`

// ClaimNext hands the caller at most one PENDING item, flipped to RUNNING
// by a conditional update that exactly one concurrent worker can win. A
// lost flip is retried transparently with the next ranked candidate.
// Returns (nil, nil) when no eligible work exists.
func (s *JobService) ClaimNext(ctx context.Context, workerID string) (*models.JobItem, error) {
	var candidateIDs []uint
	if err := s.db.WithContext(ctx).Raw(candidateQuery, claimCandidates).Scan(&candidateIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to query claim candidates: %w", err)
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	for _, id := range candidateIDs {
		item, err := s.tryClaim(ctx, id, workerID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			// Lost the race for this row; move on to the next candidate.
			metricClaimConflicts.Inc()
			continue
		}

		metricItemsClaimed.Inc()
		return item, nil
	}

	return nil, nil
}

// tryClaim performs the atomic PENDING -> RUNNING flip guarded by the
// candidate's id, its current status, and the job still being live. The
// job guard closes the window where a cancellation lands between the
// candidate query and the flip.
func (s *JobService) tryClaim(ctx context.Context, itemID uint, workerID string) (*models.JobItem, error) {
	now := time.Now()
	liveJobs := s.db.Model(&models.Job{}).Select("id").
		Where("status IN ?", []models.JobStatus{models.JobStatusPending, models.JobStatusRunning})
	res := s.db.WithContext(ctx).Model(&models.JobItem{}).
		Where("id = ? AND status = ?", itemID, models.ItemStatusPending).
		Where("job_id IN (?)", liveJobs).
		Updates(map[string]interface{}{
			"status":     models.ItemStatusRunning,
			"claimed_by": workerID,
			"started_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var item models.JobItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed item: %w", err)
	}

	// First claim moves the job to RUNNING and stamps started_at once.
	if err := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", item.JobID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"started_at": now,
		}).Error; err != nil {
		s.logger.Error("Failed to mark job running",
			zap.Uint("job_id", item.JobID),
			zap.Error(err))
	}

	return &item, nil
}

// CountStaleItems reports items stuck in RUNNING/PROCESSING longer than
// the threshold. Stuck items are surfaced to operators, never auto-
// recovered, to avoid duplicate external side effects.
func (s *JobService) CountStaleItems(ctx context.Context, olderThan time.Duration) (int64, []models.JobItem, error) {
	cutoff := time.Now().Add(-olderThan)

	inflight := []models.ItemStatus{models.ItemStatusRunning, models.ItemStatusProcessing}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.JobItem{}).
		Where("status IN ? AND started_at < ?", inflight, cutoff).
		Count(&count).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to count stale items: %w", err)
	}

	var sample []models.JobItem
	if count > 0 {
		if err := s.db.WithContext(ctx).
			Where("status IN ? AND started_at < ?", inflight, cutoff).
			Order("started_at ASC").
			Limit(10).
			Find(&sample).Error; err != nil {
			return 0, nil, fmt.Errorf("failed to sample stale items: %w", err)
		}
	}

	return count, sample, nil
}
