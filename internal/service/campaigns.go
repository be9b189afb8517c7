package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/models"
)

type CampaignEntryInput struct {
	Topic   string    `json:"topic" binding:"required"`
	Payload string    `json:"payload"`
	RunAt   time.Time `json:"run_at" binding:"required"`
}

type CreateCampaignRequest struct {
	TenantID uint                 `json:"tenant_id" binding:"required"`
	Name     string               `json:"name" binding:"required"`
	Entries  []CampaignEntryInput `json:"entries" binding:"required"`
}

// CampaignService manages tenant-defined lists of future blog jobs.
type CampaignService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCampaignService(db *gorm.DB, logger *zap.Logger) *CampaignService {
	return &CampaignService{
		db:     db,
		logger: logger,
	}
}

func (s *CampaignService) Create(ctx context.Context, req CreateCampaignRequest) (*models.ScheduledCampaign, error) {
	if len(req.Entries) == 0 {
		return nil, fmt.Errorf("campaign requires at least one entry")
	}

	campaign := &models.ScheduledCampaign{
		TenantID: req.TenantID,
		Name:     req.Name,
	}
	for _, in := range req.Entries {
		campaign.Entries = append(campaign.Entries, models.ScheduledEntry{
			TenantID: req.TenantID,
			Topic:    in.Topic,
			Payload:  in.Payload,
			RunAt:    in.RunAt,
			Status:   models.EntryStatusScheduled,
		})
	}

	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("Campaign created",
		zap.Uint("campaign_id", campaign.ID),
		zap.Uint("tenant_id", req.TenantID),
		zap.Int("entries", len(campaign.Entries)))

	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context, tenantID uint) ([]models.ScheduledCampaign, error) {
	var campaigns []models.ScheduledCampaign
	if err := s.db.WithContext(ctx).
		Preload("Entries").
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *CampaignService) Delete(ctx context.Context, campaignID, tenantID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", campaignID, tenantID).
		Delete(&models.ScheduledCampaign{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("campaign not found")
	}
	return nil
}
