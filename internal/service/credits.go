package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/models"
)

// CreditService is the only mutator of the tenant credit columns. All
// updates are conditional SQL expressions, never load-then-store from
// application memory. There is deliberately no "resync to plan default"
// routine anywhere: credits_total changes additively on billing events
// and credits_used resets only at the tenant's own cycle boundary.
type CreditService struct {
	db     *gorm.DB
	logger *zap.Logger
	cycle  time.Duration
}

func NewCreditService(db *gorm.DB, logger *zap.Logger, cycleDays int) *CreditService {
	return &CreditService{
		db:     db,
		logger: logger,
		cycle:  time.Duration(cycleDays) * 24 * time.Hour,
	}
}

// Reserve atomically debits amount from the tenant's balance. It fails
// with ErrInsufficientCredits and performs no mutation when the balance
// cannot cover the amount.
func (s *CreditService) Reserve(ctx context.Context, tenantID uint, amount int64) error {
	return s.reserve(s.db.WithContext(ctx), tenantID, amount)
}

// reserve runs the conditional debit against the given handle so job
// creation can reserve inside its own transaction.
func (s *CreditService) reserve(db *gorm.DB, tenantID uint, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("reserve amount must be non-negative, got %d", amount)
	}

	res := db.Model(&models.Tenant{}).
		Where("id = ? AND credits_total - credits_used >= ?", tenantID, amount).
		UpdateColumn("credits_used", gorm.Expr("credits_used + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to reserve credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var tenant models.Tenant
		if err := db.First(&tenant, tenantID).Error; err != nil {
			return fmt.Errorf("tenant not found: %w", err)
		}
		return ErrInsufficientCredits
	}

	return nil
}

// Release compensates a reservation whose job creation failed, returning
// credits_used to its pre-reservation value.
func (s *CreditService) Release(ctx context.Context, tenantID uint, amount int64) error {
	return s.release(s.db.WithContext(ctx), tenantID, amount)
}

func (s *CreditService) release(db *gorm.DB, tenantID uint, amount int64) error {
	res := db.Model(&models.Tenant{}).
		Where("id = ? AND credits_used >= ?", tenantID, amount).
		UpdateColumn("credits_used", gorm.Expr("credits_used - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to release credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("release of %d credits for tenant %d exceeds reserved amount", amount, tenantID)
	}
	return nil
}

// TopUp additively increases credits_total. It is driven only by a
// verified billing event or an explicit reconciliation call; accumulated
// rolled-over balance is never replaced by a plan default.
func (s *CreditService) TopUp(ctx context.Context, tenantID uint, allotment int64) error {
	if allotment < 0 {
		return fmt.Errorf("top-up allotment must be non-negative, got %d", allotment)
	}

	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		UpdateColumn("credits_total", gorm.Expr("credits_total + ?", allotment))
	if res.Error != nil {
		return fmt.Errorf("failed to top up credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant %d not found", tenantID)
	}

	s.logger.Info("Credits topped up",
		zap.Uint("tenant_id", tenantID),
		zap.Int64("allotment", allotment))

	return nil
}

// ApplyPlanUpgrade replaces the total with the unused balance plus the
// new plan's allotment and starts the new plan with zero usage.
func (s *CreditService) ApplyPlanUpgrade(ctx context.Context, tenantID uint, planID string, allotment int64) error {
	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"credits_total": gorm.Expr("credits_total - credits_used + ?", allotment),
			"credits_used":  0,
			"plan_id":       planID,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to apply plan upgrade: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant %d not found", tenantID)
	}

	s.logger.Info("Plan upgrade applied",
		zap.Uint("tenant_id", tenantID),
		zap.String("plan_id", planID),
		zap.Int64("allotment", allotment))

	return nil
}

// CycleReset zeroes credits_used and advances next_billing_at by one
// cycle. The update is guarded by the previously observed next_billing_at
// so concurrent resets advance the cycle exactly once.
func (s *CreditService) CycleReset(ctx context.Context, tenantID uint, now time.Time) error {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return fmt.Errorf("tenant not found: %w", err)
	}

	if now.Before(tenant.NextBillingAt) {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND next_billing_at = ?", tenantID, tenant.NextBillingAt).
		Updates(map[string]interface{}{
			"credits_used":    0,
			"next_billing_at": tenant.NextBillingAt.Add(s.cycle),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset billing cycle: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another process already advanced this cycle.
		return nil
	}

	s.logger.Info("Billing cycle reset",
		zap.Uint("tenant_id", tenantID),
		zap.Time("next_billing_at", tenant.NextBillingAt.Add(s.cycle)))

	return nil
}

// ResetDueCycles resets every tenant whose own next_billing_at has
// passed. Each reset is individually guarded; a no-op for tenants whose
// boundary has not arrived.
func (s *CreditService) ResetDueCycles(ctx context.Context, now time.Time) error {
	var due []models.Tenant
	if err := s.db.WithContext(ctx).
		Where("next_billing_at <= ?", now).
		Limit(100).
		Find(&due).Error; err != nil {
		return fmt.Errorf("failed to list due tenants: %w", err)
	}

	for _, tenant := range due {
		if err := s.CycleReset(ctx, tenant.ID, now); err != nil {
			s.logger.Error("Failed to reset billing cycle",
				zap.Uint("tenant_id", tenant.ID),
				zap.Error(err))
		}
	}

	return nil
}
