package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant is one connected store/account. Credit columns are only ever
// mutated through atomic conditional updates (see service.CreditService):
// credits_total grows additively on billing events, credits_used resets
// only at the tenant's own cycle boundary.
type Tenant struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	StoreDomain       string         `gorm:"uniqueIndex;not null;size:255" json:"store_domain"`
	PlanID            string         `gorm:"size:100;default:'free'" json:"plan_id"`
	CreditsTotal      int64          `gorm:"not null;default:0" json:"credits_total"`
	CreditsUsed       int64          `gorm:"not null;default:0" json:"credits_used"`
	SubscriptionStart time.Time      `json:"subscription_start"`
	NextBillingAt     time.Time      `gorm:"index" json:"next_billing_at"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// UnusedCredits is the balance still available for reservations.
func (t *Tenant) UnusedCredits() int64 {
	return t.CreditsTotal - t.CreditsUsed
}
