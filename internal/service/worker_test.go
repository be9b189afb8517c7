package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/models"
	"github.com/storesmith/storesmith/internal/service/processor"
)

type fakeRewriter struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (f *fakeRewriter) Rewrite(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.out, f.err
}

func newSyncHarness(t *testing.T, rw processor.Rewriter, count int) (*gorm.DB, *JobService, *WorkerPool) {
	t.Helper()
	db, jobs, _ := newTestServices(t)

	mgr := processor.NewManager(zap.NewNop())
	require.NoError(t, mgr.Register(processor.NewTextOptimizeProcessor(rw, zap.NewNop())))

	bridge := NewGenerationBridge(db, zap.NewNop(), jobs, mgr, &config.BridgeConfig{
		PollInterval: "10ms",
		BatchSize:    20,
	})
	pool := NewWorkerPool(jobs, bridge, mgr, zap.NewNop(), &config.WorkerConfig{
		Count:        count,
		PollInterval: "10ms",
		StaleAfter:   "30m",
	})
	return db, jobs, pool
}

func TestWorkerCompletesSyncItemInOneHop(t *testing.T) {
	rw := &fakeRewriter{out: "polished copy"}
	db, jobs, pool := newSyncHarness(t, rw, 1)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	job := seedJob(t, jobs, tenant.ID, models.JobKindTextOptimize, 1)
	ctx := context.Background()

	item := claimOne(t, jobs, "worker-1")
	pool.process(ctx, "worker-1", item)

	got := reloadItem(t, db, item.ID)
	assert.Equal(t, models.ItemStatusDone, got.Status)
	assert.Equal(t, "polished copy", got.Result)
	assert.Equal(t, models.JobStatusDone, reloadJob(t, db, job.ID).Status)
}

func TestWorkerFailsItemOnProviderError(t *testing.T) {
	rw := &fakeRewriter{err: errors.New("model overloaded")}
	db, jobs, pool := newSyncHarness(t, rw, 1)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	job := seedJob(t, jobs, tenant.ID, models.JobKindTextOptimize, 1)
	ctx := context.Background()

	item := claimOne(t, jobs, "worker-1")
	pool.process(ctx, "worker-1", item)

	got := reloadItem(t, db, item.ID)
	assert.Equal(t, models.ItemStatusFailed, got.Status)
	assert.Contains(t, got.Error, "model overloaded")
	assert.Equal(t, models.JobStatusFailed, reloadJob(t, db, job.ID).Status)
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	rw := &fakeRewriter{out: "done"}
	db, jobs, pool := newSyncHarness(t, rw, 2)
	tenant := seedTenant(t, db, "alpha.example.com", 100)
	job := seedJob(t, jobs, tenant.ID, models.JobKindTextOptimize, 6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	require.Eventually(t, func() bool {
		var j models.Job
		if err := db.First(&j, job.ID).Error; err != nil {
			return false
		}
		return j.Status == models.JobStatusDone
	}, 5*time.Second, 20*time.Millisecond)

	final := reloadJob(t, db, job.ID)
	assert.Equal(t, 6, final.CompletedItems)
	assert.Equal(t, 0, final.FailedItems)
}
