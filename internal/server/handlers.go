package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/service"
)

type createTenantRequest struct {
	StoreDomain string `json:"store_domain" binding:"required"`
	PlanID      string `json:"plan_id"`
	Allotment   int64  `json:"allotment"`
}

func (s *Server) handleCreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PlanID == "" {
		req.PlanID = "free"
	}

	tenant, err := s.Tenants.Create(c.Request.Context(), req.StoreDomain, req.PlanID, req.Allotment)
	if err != nil {
		s.Logger.Error("Failed to create tenant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tenant"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tenant": tenant})
}

func (s *Server) handleGetCredits(c *gin.Context) {
	tenantID, ok := parseID(c, "id")
	if !ok {
		return
	}

	tenant, err := s.Tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credits_total": tenant.CreditsTotal,
		"credits_used":  tenant.CreditsUsed,
		"unused":        tenant.UnusedCredits(),
		"plan_id":       tenant.PlanID,
		"next_billing":  tenant.NextBillingAt,
	})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req service.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.Jobs.CreateJob(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientCredits) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient credits"})
			return
		}
		s.Logger.Error("Failed to create job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job})
}

func (s *Server) handleListJobs(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	jobs, err := s.Jobs.ListJobs(c.Request.Context(), uint(tenantID))
	if err != nil {
		s.Logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleListJobItems(c *gin.Context) {
	items, err := s.Jobs.ListItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type cancelJobRequest struct {
	TenantID uint `json:"tenant_id" binding:"required"`
}

func (s *Server) handleCancelJob(c *gin.Context) {
	var req cancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.Jobs.CancelJob(c.Request.Context(), c.Param("id"), req.TenantID)
	if err != nil {
		if errors.Is(err, service.ErrNotCancelable) {
			c.JSON(http.StatusConflict, gin.H{"error": "Job already finished"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handlePublishItem(c *gin.Context) {
	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	record, err := s.Publish.Publish(c.Request.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			c.JSON(http.StatusConflict, gin.H{"error": "Item result not ready for publish"})
			return
		}
		s.Logger.Error("Failed to publish item", zap.Uint("item_id", itemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": record})
}

// billingEvent is delivered by the billing webhook collaborator after
// signature verification; it is trusted here.
type billingEvent struct {
	TenantID  uint   `json:"tenant_id" binding:"required"`
	EventType string `json:"event_type" binding:"required"`
	PlanID    string `json:"plan_id"`
	Allotment int64  `json:"allotment"`
}

func (s *Server) handleBillingEvent(c *gin.Context) {
	var event billingEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch event.EventType {
	case "top_up", "cycle_renewal":
		err = s.Credits.TopUp(ctx, event.TenantID, event.Allotment)
	case "plan_upgrade":
		err = s.Credits.ApplyPlanUpgrade(ctx, event.TenantID, event.PlanID, event.Allotment)
	case "cycle_reset":
		err = s.Credits.CycleReset(ctx, event.TenantID, time.Now())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event type"})
		return
	}

	if err != nil {
		s.Logger.Error("Failed to apply billing event",
			zap.Uint("tenant_id", event.TenantID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply billing event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event applied"})
}

func (s *Server) handleCreateCampaign(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := s.Campaigns.Create(c.Request.Context(), req)
	if err != nil {
		s.Logger.Error("Failed to create campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"campaign": campaign})
}

func (s *Server) handleListCampaigns(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	campaigns, err := s.Campaigns.List(c.Request.Context(), uint(tenantID))
	if err != nil {
		s.Logger.Error("Failed to list campaigns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (s *Server) handleDeleteCampaign(c *gin.Context) {
	campaignID, ok := parseID(c, "id")
	if !ok {
		return
	}

	tenantID, err := strconv.ParseUint(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	if err := s.Campaigns.Delete(c.Request.Context(), campaignID, uint(tenantID)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Campaign deleted"})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}
