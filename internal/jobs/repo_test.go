package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/migrate"
)

func setupJobsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(migrate.Models()...))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestCreateEnforcesOneJobPerPDF(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(setupJobsTestDB(t))
	pdfID := uuid.New()

	job, err := r.Create(ctx, &models.ExtractionJob{PDFID: pdfID})
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusQueued, job.Status)

	_, err = r.Create(ctx, &models.ExtractionJob{PDFID: pdfID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobExists)
}

func TestClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(setupJobsTestDB(t))
	job, err := r.Create(ctx, &models.ExtractionJob{PDFID: uuid.New()})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ok, err := r.Claim(ctx, job.ID, fmt.Sprintf("worker-%d", worker), time.Now().UTC())
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := r.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.WorkerID)
}

func TestFinishOnlyFromRunning(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(setupJobsTestDB(t))
	job, err := r.Create(ctx, &models.ExtractionJob{PDFID: uuid.New()})
	require.NoError(t, err)

	ok, err := r.Finish(ctx, job.ID, Result{Status: enums.JobStatusSucceeded})
	require.NoError(t, err)
	assert.False(t, ok, "queued jobs cannot finish")

	_, err = r.Claim(ctx, job.ID, "w", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, r.UpdateProgress(ctx, job.ID, Progress{PagesTotal: 2, QuestionsExtracted: 3}))

	ok, err = r.Finish(ctx, job.ID, Result{
		Status:    enums.JobStatusSucceeded,
		Progress:  Progress{PagesTotal: 2, PagesFailed: 1, QuestionsExtracted: 3},
		LastError: "page 2: extraction format",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := r.FindByPDFID(ctx, job.PDFID)
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusSucceeded, stored.Status)
	assert.Equal(t, 1, stored.PagesFailed)
	assert.Equal(t, 3, stored.QuestionsExtracted)
	require.NotNil(t, stored.LastError)
	assert.NotNil(t, stored.FinishedAt)

	ok, err = r.Finish(ctx, job.ID, Result{Status: enums.JobStatusFailed})
	require.NoError(t, err)
	assert.False(t, ok, "finished jobs are immutable")
}

func TestStaleListingsAndRequeue(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(setupJobsTestDB(t))
	now := time.Now().UTC()

	old, err := r.Create(ctx, &models.ExtractionJob{PDFID: uuid.New(), QueuedAt: now.Add(-10 * time.Minute)})
	require.NoError(t, err)
	_, err = r.Create(ctx, &models.ExtractionJob{PDFID: uuid.New(), QueuedAt: now})
	require.NoError(t, err)
	running, err := r.Create(ctx, &models.ExtractionJob{PDFID: uuid.New(), QueuedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = r.Claim(ctx, running.ID, "w", now.Add(-time.Hour))
	require.NoError(t, err)

	queued, err := r.ListQueuedBefore(ctx, now.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, old.ID, queued[0].ID)

	stuck, err := r.ListRunningBefore(ctx, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, running.ID, stuck[0].ID)

	ok, err := r.Requeue(ctx, old.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	queued, err = r.ListQueuedBefore(ctx, now.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, queued)

	ok, err = r.Requeue(ctx, running.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "running jobs are not requeued")
}
