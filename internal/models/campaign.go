package models

import (
	"time"

	"gorm.io/gorm"
)

type EntryStatus string

const (
	EntryStatusScheduled EntryStatus = "SCHEDULED"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
)

// ScheduledCampaign is a tenant-defined list of future blog-generation
// jobs.
type ScheduledCampaign struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TenantID  uint           `gorm:"not null;index" json:"tenant_id"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Tenant  Tenant           `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	Entries []ScheduledEntry `gorm:"foreignKey:CampaignID" json:"entries,omitempty"`
}

// ScheduledEntry spawns one blog-generation Job once RunAt passes, then
// links to it through JobID.
type ScheduledEntry struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	CampaignID uint        `gorm:"not null;index" json:"campaign_id"`
	TenantID   uint        `gorm:"not null;index" json:"tenant_id"`
	Topic      string      `gorm:"not null;size:500" json:"topic"`
	Payload    string      `gorm:"type:text" json:"payload"`
	RunAt      time.Time   `gorm:"not null;index" json:"run_at"`
	Status     EntryStatus `gorm:"size:20;not null;default:'SCHEDULED';index" json:"status"`
	JobID      *uint       `gorm:"index" json:"job_id"`
	Error      string      `gorm:"type:text" json:"error"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	Campaign ScheduledCampaign `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"-"`
	Job      *Job              `gorm:"foreignKey:JobID" json:"job,omitempty"`
}
