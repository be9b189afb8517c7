package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobKind string

const (
	JobKindTextOptimize  JobKind = "text_optimize"
	JobKindImageOptimize JobKind = "image_optimize"
	JobKindBlogPost      JobKind = "blog_post"
)

// Async reports whether the kind runs through the two-phase generation
// bridge (submit, then poll) instead of completing synchronously.
func (k JobKind) Async() bool {
	return k == JobKindImageOptimize || k == JobKindBlogPost
}

type JobStatus string

const (
	JobStatusPending  JobStatus = "PENDING"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusDone     JobStatus = "DONE"
	JobStatusFailed   JobStatus = "FAILED"
	JobStatusCanceled JobStatus = "CANCELED"
)

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "PENDING"
	ItemStatusRunning    ItemStatus = "RUNNING"
	ItemStatusProcessing ItemStatus = "PROCESSING"
	ItemStatusDone       ItemStatus = "DONE"
	ItemStatusFailed     ItemStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusDone || s == ItemStatusFailed
}

// ValidItemTransition enforces the forward-only item lifecycle:
// PENDING -> RUNNING -> (PROCESSING ->) DONE | FAILED.
func ValidItemTransition(from, to ItemStatus) bool {
	switch from {
	case ItemStatusPending:
		return to == ItemStatusRunning
	case ItemStatusRunning:
		return to == ItemStatusProcessing || to.Terminal()
	case ItemStatusProcessing:
		return to.Terminal()
	default:
		return false
	}
}

// Job is one bulk operation request. Status and the item counters are
// derived from item completions, never set independently by callers.
type Job struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PublicID       string     `gorm:"uniqueIndex;not null;size:36" json:"public_id"`
	TenantID       uint       `gorm:"not null;index" json:"tenant_id"`
	Kind           JobKind    `gorm:"size:50;not null" json:"kind"`
	Status         JobStatus  `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	TotalItems     int        `gorm:"not null;default:0" json:"total_items"`
	CompletedItems int        `gorm:"not null;default:0" json:"completed_items"`
	FailedItems    int        `gorm:"not null;default:0" json:"failed_items"`
	CreditsCost    int64      `gorm:"not null;default:0" json:"credits_cost"`
	Error          string     `gorm:"type:text" json:"error"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Tenant Tenant    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Items  []JobItem `gorm:"foreignKey:JobID" json:"items,omitempty"`
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.PublicID == "" {
		j.PublicID = uuid.NewString()
	}
	return nil
}

// JobItem is one unit of work within a Job. TenantID is denormalized so
// the fair claim query can rank candidates without joining tenants.
// Exactly one row exists per (job, unit_key).
type JobItem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	JobID         uint       `gorm:"not null;uniqueIndex:idx_job_items_unit" json:"job_id"`
	TenantID      uint       `gorm:"not null;index:idx_job_items_tenant_status,priority:1" json:"tenant_id"`
	UnitKey       string     `gorm:"not null;size:255;uniqueIndex:idx_job_items_unit" json:"unit_key"`
	Payload       string     `gorm:"type:text" json:"payload"`
	Status        ItemStatus `gorm:"size:20;not null;default:'PENDING';index:idx_job_items_tenant_status,priority:2" json:"status"`
	CorrelationID string     `gorm:"size:255;index" json:"correlation_id"`
	Result        string     `gorm:"type:text" json:"result"`
	Error         string     `gorm:"type:text" json:"error"`
	Published     bool       `gorm:"not null;default:false" json:"published"`
	ClaimedBy     string     `gorm:"size:64" json:"claimed_by"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Job Job `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

// PublishRecord marks that an item's result was pushed to the external
// catalog. The unique index on JobItemID is what makes publish idempotent.
type PublishRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	JobItemID   uint      `gorm:"uniqueIndex;not null" json:"job_item_id"`
	ExternalRef string    `gorm:"size:255" json:"external_ref"`
	PushedAt    time.Time `json:"pushed_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Item JobItem `gorm:"foreignKey:JobItemID;constraint:OnDelete:CASCADE" json:"-"`
}
