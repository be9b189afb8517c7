package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
)

// newTestDB opens a named in-memory database so every connection in a
// test sees the same data, and pins the pool to one connection to keep
// sqlite happy under concurrent access.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func testJobsConfig() *config.JobsConfig {
	return &config.JobsConfig{
		MaxItemsPerJob: 250,
		ItemCosts: map[string]int64{
			"text_optimize":  1,
			"image_optimize": 2,
			"blog_post":      15,
		},
	}
}

func newTestServices(t *testing.T) (*gorm.DB, *JobService, *CreditService) {
	t.Helper()
	db := newTestDB(t)
	credits := NewCreditService(db, zap.NewNop(), 30)
	jobs := NewJobService(db, zap.NewNop(), credits, testJobsConfig())
	return db, jobs, credits
}

func seedTenant(t *testing.T, db *gorm.DB, domain string, creditsTotal int64) *models.Tenant {
	t.Helper()
	now := time.Now()
	tenant := &models.Tenant{
		StoreDomain:       domain,
		PlanID:            "growth",
		CreditsTotal:      creditsTotal,
		SubscriptionStart: now,
		NextBillingAt:     now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedJob(t *testing.T, jobs *JobService, tenantID uint, kind models.JobKind, n int) *models.Job {
	t.Helper()
	items := make([]JobItemInput, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, JobItemInput{
			UnitKey: fmt.Sprintf("unit-%d", i),
			Payload: fmt.Sprintf(`{"input":"payload %d"}`, i),
		})
	}
	job, err := jobs.CreateJob(context.Background(), CreateJobRequest{
		TenantID: tenantID,
		Kind:     kind,
		Items:    items,
	})
	require.NoError(t, err)
	return job
}

func claimOne(t *testing.T, jobs *JobService, workerID string) *models.JobItem {
	t.Helper()
	item, err := jobs.ClaimNext(context.Background(), workerID)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func reloadTenant(t *testing.T, db *gorm.DB, id uint) *models.Tenant {
	t.Helper()
	var tenant models.Tenant
	require.NoError(t, db.First(&tenant, id).Error)
	return &tenant
}

func reloadJob(t *testing.T, db *gorm.DB, id uint) *models.Job {
	t.Helper()
	var job models.Job
	require.NoError(t, db.First(&job, id).Error)
	return &job
}

func reloadItem(t *testing.T, db *gorm.DB, id uint) *models.JobItem {
	t.Helper()
	var item models.JobItem
	require.NoError(t, db.First(&item, id).Error)
	return &item
}
