package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// FinalizerParams wires a Finalizer for processes that do not execute runs.
type FinalizerParams struct {
	Config   config.PipelineConfig
	Logger   *logger.Logger
	PDFs     pdfs.Repository
	Jobs     jobs.Repository
	Store    RunStore
	Metrics  *metrics.PipelineMetrics
	Recorder RunRecorder
	Clock    func() time.Time
}

// Finalizer applies the failure policy on behalf of runs that can no longer do it.
type Finalizer struct {
	cfg      config.PipelineConfig
	logg     *logger.Logger
	pdfs     pdfs.Repository
	jobs     jobs.Repository
	flags    cancelFlags
	metrics  *metrics.PipelineMetrics
	recorder RunRecorder
	clock    func() time.Time
}

// NewFinalizer validates params and builds a Finalizer.
func NewFinalizer(params FinalizerParams) (*Finalizer, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.PDFs == nil || params.Jobs == nil {
		return nil, errors.New("repositories required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	recorder := params.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Finalizer{
		cfg:      params.Config,
		logg:     params.Logger,
		pdfs:     params.PDFs,
		jobs:     params.Jobs,
		flags:    cancelFlags{store: params.Store, ttl: cancelFlagTTL(params.Config)},
		metrics:  params.Metrics,
		recorder: recorder,
		clock:    clock,
	}, nil
}

// applyFailurePolicy returns the status the PDF was left in.
func (f *Finalizer) applyFailurePolicy(ctx context.Context, pdfID uuid.UUID, reason string, at time.Time) enums.PDFStatus {
	if !f.cfg.MarkFailed() {
		f.logg.Info(ctx, "ingest.pdf.left_processing")
		return enums.PDFStatusProcessing
	}
	finalized, err := f.pdfs.Finalize(ctx, pdfID, pdfs.Outcome{Status: enums.PDFStatusFailed, FailureReason: reason, At: at})
	if err != nil {
		f.logg.Error(ctx, "ingest.finalize.failed", err)
		return enums.PDFStatusProcessing
	}
	if !finalized {
		return ""
	}
	return enums.PDFStatusFailed
}

// Abandon fails a job that stopped making progress, signals its worker to stop and
// applies the failure policy to its PDF. It reports false when the job was no longer
// running.
func (f *Finalizer) Abandon(ctx context.Context, job models.ExtractionJob, reason string) (bool, error) {
	ctx = f.logg.WithPDFID(f.logg.WithJobID(ctx, job.ID.String()), job.PDFID.String())
	now := f.clock().UTC()
	progress := jobs.Progress{
		PagesTotal:         job.PagesTotal,
		PagesFailed:        job.PagesFailed,
		QuestionsExtracted: job.QuestionsExtracted,
	}
	finished, err := f.jobs.Finish(ctx, job.ID, jobs.Result{
		Status:    enums.JobStatusFailed,
		Progress:  progress,
		LastError: reason,
		At:        now,
	})
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	if !finished {
		return false, nil
	}

	if err := f.flags.raise(ctx, job.PDFID); err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "ingest.cancel_flag.raise_failed")
	}

	startedAt := job.QueuedAt
	if job.StartedAt != nil {
		startedAt = *job.StartedAt
	}
	summary := RunSummary{
		JobID:      job.ID,
		PDFID:      job.PDFID,
		JobStatus:  enums.JobStatusFailed,
		PDFStatus:  f.applyFailurePolicy(ctx, job.PDFID, reason, now),
		Attempts:   job.Attempts,
		Progress:   progress,
		Error:      reason,
		StartedAt:  startedAt,
		FinishedAt: now,
	}
	f.metrics.ObserveRun(metrics.OutcomeFailed, now.Sub(startedAt))
	f.recorder.Record(ctx, summary)
	f.logg.Warn(f.logg.WithField(ctx, "reason", reason), "ingest.run.abandoned")
	return true, nil
}
