package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
)

func newSchedulerHarness(t *testing.T) (*gorm.DB, *Scheduler, *JobService, *CampaignService) {
	t.Helper()
	db, jobs, credits := newTestServices(t)
	sched := NewScheduler(&config.SchedulerConfig{Interval: "1m", Enabled: true},
		zap.NewNop(), db, jobs, credits)
	campaigns := NewCampaignService(db, zap.NewNop())
	return db, sched, jobs, campaigns
}

func seedCampaignEntry(t *testing.T, campaigns *CampaignService, tenantID uint, topic string, runAt time.Time) *models.ScheduledEntry {
	t.Helper()
	campaign, err := campaigns.Create(context.Background(), CreateCampaignRequest{
		TenantID: tenantID,
		Name:     "spring launch",
		Entries: []CampaignEntryInput{
			{Topic: topic, RunAt: runAt},
		},
	})
	require.NoError(t, err)
	require.Len(t, campaign.Entries, 1)
	return &campaign.Entries[0]
}

func TestDueEntrySpawnsBlogJobOnce(t *testing.T) {
	db, sched, _, campaigns := newSchedulerHarness(t)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	entry := seedCampaignEntry(t, campaigns, tenant.ID, "Summer Sale Guide", time.Now().Add(-time.Minute))
	ctx := context.Background()

	require.NoError(t, sched.runDueEntries(ctx, time.Now()))

	var got models.ScheduledEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.Equal(t, models.EntryStatusCompleted, got.Status)
	require.NotNil(t, got.JobID)

	job := reloadJob(t, db, *got.JobID)
	assert.Equal(t, models.JobKindBlogPost, job.Kind)
	assert.Equal(t, 1, job.TotalItems)

	items := reloadJobItems(t, db, job.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "Summer Sale Guide", items[0].UnitKey)
	assert.JSONEq(t, `{"topic":"Summer Sale Guide"}`, items[0].Payload)

	assert.Equal(t, int64(15), reloadTenant(t, db, tenant.ID).CreditsUsed)

	// A second sweep sees no SCHEDULED entries and spawns nothing.
	require.NoError(t, sched.runDueEntries(ctx, time.Now()))
	var jobCount int64
	require.NoError(t, db.Model(&models.Job{}).Count(&jobCount).Error)
	assert.EqualValues(t, 1, jobCount)
}

func TestDueEntryFailsWithoutCredits(t *testing.T) {
	db, sched, _, campaigns := newSchedulerHarness(t)
	tenant := seedTenant(t, db, "alpha.example.com", 5)
	entry := seedCampaignEntry(t, campaigns, tenant.ID, "Summer Sale Guide", time.Now().Add(-time.Minute))
	ctx := context.Background()

	require.NoError(t, sched.runDueEntries(ctx, time.Now()))

	var got models.ScheduledEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.Equal(t, models.EntryStatusFailed, got.Status)
	assert.Contains(t, got.Error, "insufficient credits")
	assert.Nil(t, got.JobID)

	var jobCount int64
	require.NoError(t, db.Model(&models.Job{}).Count(&jobCount).Error)
	assert.Zero(t, jobCount)
}

func TestFutureEntryIsNotTriggered(t *testing.T) {
	db, sched, _, campaigns := newSchedulerHarness(t)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	entry := seedCampaignEntry(t, campaigns, tenant.ID, "Holiday Gift Ideas", time.Now().Add(time.Hour))
	ctx := context.Background()

	require.NoError(t, sched.runDueEntries(ctx, time.Now()))

	var got models.ScheduledEntry
	require.NoError(t, db.First(&got, entry.ID).Error)
	assert.Equal(t, models.EntryStatusScheduled, got.Status)
}

func TestCampaignLifecycle(t *testing.T) {
	db, _, _, campaigns := newSchedulerHarness(t)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	ctx := context.Background()

	created, err := campaigns.Create(ctx, CreateCampaignRequest{
		TenantID: tenant.ID,
		Name:     "fall content",
		Entries: []CampaignEntryInput{
			{Topic: "Fall Trends", RunAt: time.Now().Add(time.Hour)},
			{Topic: "Layering Basics", RunAt: time.Now().Add(2 * time.Hour)},
		},
	})
	require.NoError(t, err)

	listed, err := campaigns.List(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Len(t, listed[0].Entries, 2)

	require.NoError(t, campaigns.Delete(ctx, created.ID, tenant.ID))
	require.Error(t, campaigns.Delete(ctx, created.ID, tenant.ID))
}
