package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/models"
)

// TenantService registers connected stores. The hosting platform has
// already authenticated the install; requests arrive with a resolved
// store domain.
type TenantService struct {
	db     *gorm.DB
	logger *zap.Logger
	cycle  time.Duration
}

func NewTenantService(db *gorm.DB, logger *zap.Logger, cycleDays int) *TenantService {
	return &TenantService{
		db:     db,
		logger: logger,
		cycle:  time.Duration(cycleDays) * 24 * time.Hour,
	}
}

// Create registers a tenant with an initial plan allotment. The billing
// cycle anchors on the individual subscription start, not a shared
// calendar boundary.
func (s *TenantService) Create(ctx context.Context, storeDomain, planID string, allotment int64) (*models.Tenant, error) {
	now := time.Now()
	tenant := &models.Tenant{
		StoreDomain:       storeDomain,
		PlanID:            planID,
		CreditsTotal:      allotment,
		SubscriptionStart: now,
		NextBillingAt:     now.Add(s.cycle),
	}

	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.Info("Tenant registered",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("store_domain", storeDomain),
		zap.String("plan_id", planID))

	return tenant, nil
}

func (s *TenantService) Get(ctx context.Context, tenantID uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return nil, fmt.Errorf("tenant not found: %w", err)
	}
	return &tenant, nil
}
