package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

const (
	staleRunsJobName = "stale-runs"
	defaultBatchSize = 100
)

type staleJobStore interface {
	ListQueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error)
	ListRunningBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error)
	Requeue(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type abandoner interface {
	Abandon(ctx context.Context, job models.ExtractionJob, reason string) (bool, error)
}

// StaleRunsJobParams configure the stale run sweeper.
type StaleRunsJobParams struct {
	Logger       *logger.Logger
	Jobs         staleJobStore
	Dispatcher   ingest.Dispatcher
	Abandoner    abandoner
	RequeueAfter time.Duration
	RunTimeout   time.Duration
	RunningGrace time.Duration
	BatchSize    int
	Clock        func() time.Time
}

// StaleRunsJob re-dispatches queued jobs nobody picked up and fails runs whose worker
// went silent past the run timeout.
type StaleRunsJob struct {
	logg         *logger.Logger
	jobs         staleJobStore
	dispatcher   ingest.Dispatcher
	abandoner    abandoner
	requeueAfter time.Duration
	runningAfter time.Duration
	batchSize    int
	clock        func() time.Time
}

// NewStaleRunsJob validates params and builds the job.
func NewStaleRunsJob(params StaleRunsJobParams) (*StaleRunsJob, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Jobs == nil:
		return nil, errors.New("job store required")
	case params.Dispatcher == nil:
		return nil, errors.New("dispatcher required")
	case params.Abandoner == nil:
		return nil, errors.New("abandoner required")
	case params.RequeueAfter <= 0:
		return nil, errors.New("requeue threshold must be positive")
	case params.RunTimeout <= 0:
		return nil, errors.New("run timeout must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StaleRunsJob{
		logg:         params.Logger,
		jobs:         params.Jobs,
		dispatcher:   params.Dispatcher,
		abandoner:    params.Abandoner,
		requeueAfter: params.RequeueAfter,
		runningAfter: params.RunTimeout + params.RunningGrace,
		batchSize:    batch,
		clock:        clock,
	}, nil
}

func (j *StaleRunsJob) Name() string { return staleRunsJobName }

// Run performs one sweep. Failures on individual jobs do not stop the batch.
func (j *StaleRunsJob) Run(ctx context.Context) error {
	now := j.clock().UTC()
	return multierr.Combine(
		j.redispatchQueued(ctx, now),
		j.abandonRunning(ctx, now),
	)
}

func (j *StaleRunsJob) redispatchQueued(ctx context.Context, now time.Time) error {
	queued, err := j.jobs.ListQueuedBefore(ctx, now.Add(-j.requeueAfter), j.batchSize)
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}

	var errs error
	redispatched := 0
	for _, job := range queued {
		jobCtx := j.logg.WithJobID(j.logg.WithPDFID(ctx, job.PDFID.String()), job.ID.String())
		ok, err := j.jobs.Requeue(ctx, job.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("requeue job %s: %w", job.ID, err))
			continue
		}
		if !ok {
			continue
		}
		if err := j.dispatcher.Dispatch(ctx, ingest.Task{JobID: job.ID, PDFID: job.PDFID}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispatch job %s: %w", job.ID, err))
			continue
		}
		redispatched++
		j.logg.Info(jobCtx, "cron.stale_runs.redispatched")
	}
	if redispatched > 0 {
		j.logg.Info(j.logg.WithField(ctx, "count", redispatched), "cron.stale_runs.redispatch.summary")
	}
	return errs
}

func (j *StaleRunsJob) abandonRunning(ctx context.Context, now time.Time) error {
	running, err := j.jobs.ListRunningBefore(ctx, now.Add(-j.runningAfter), j.batchSize)
	if err != nil {
		return fmt.Errorf("list running jobs: %w", err)
	}

	var errs error
	reason := fmt.Sprintf("run exceeded %s without finishing", j.runningAfter)
	for _, job := range running {
		if _, err := j.abandoner.Abandon(ctx, job, reason); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("abandon job %s: %w", job.ID, err))
		}
	}
	return errs
}
