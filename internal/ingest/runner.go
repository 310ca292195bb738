package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/extraction"
	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pages"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/internal/rasterizer"
	"github.com/angelmondragon/testhub-backend/pkg/codec"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/testhub-backend/pkg/db/types"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// RunnerParams wires the collaborators of a Runner.
type RunnerParams struct {
	Config     config.PipelineConfig
	Logger     *logger.Logger
	PDFs       pdfs.Repository
	Pages      pages.Repository
	Questions  questions.Repository
	Jobs       jobs.Repository
	Rasterizer rasterizer.Rasterizer
	Extractor  extraction.Extractor
	Store      RunStore
	Metrics    *metrics.PipelineMetrics
	Recorder   RunRecorder
	WorkerID   string
	Clock      func() time.Time
}

// Runner executes extraction runs. A run owns its PDF row from claim to finalization.
type Runner struct {
	cfg       config.PipelineConfig
	logg      *logger.Logger
	pdfs      pdfs.Repository
	pages     pages.Repository
	questions questions.Repository
	jobs      jobs.Repository
	raster    rasterizer.Rasterizer
	extractor extraction.Extractor
	store     RunStore
	flags     cancelFlags
	fin       *Finalizer
	registry  *cancelRegistry
	metrics   *metrics.PipelineMetrics
	recorder  RunRecorder
	workerID  string
	clock     func() time.Time
}

// NewRunner validates params and builds a Runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.PDFs == nil, params.Pages == nil, params.Questions == nil, params.Jobs == nil:
		return nil, errors.New("repositories required")
	case params.Rasterizer == nil:
		return nil, errors.New("rasterizer required")
	case params.Extractor == nil:
		return nil, errors.New("extractor required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	workerID := params.WorkerID
	if workerID == "" {
		workerID = "worker-0"
	}
	recorder := params.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	flags := cancelFlags{store: params.Store, ttl: cancelFlagTTL(params.Config)}
	fin := &Finalizer{
		cfg:      params.Config,
		logg:     params.Logger,
		pdfs:     params.PDFs,
		jobs:     params.Jobs,
		flags:    flags,
		metrics:  params.Metrics,
		recorder: recorder,
		clock:    clock,
	}
	return &Runner{
		cfg:       params.Config,
		logg:      params.Logger,
		pdfs:      params.PDFs,
		pages:     params.Pages,
		questions: params.Questions,
		jobs:      params.Jobs,
		raster:    params.Rasterizer,
		extractor: params.Extractor,
		store:     params.Store,
		flags:     flags,
		fin:       fin,
		registry:  newCancelRegistry(),
		metrics:   params.Metrics,
		recorder:  recorder,
		workerID:  workerID,
		clock:     clock,
	}, nil
}

func cancelFlagTTL(cfg config.PipelineConfig) time.Duration {
	if cfg.RunTimeout > 0 {
		return cfg.RunTimeout
	}
	return time.Hour
}

type runOutcome struct {
	pdfStatus enums.PDFStatus
	progress  jobs.Progress
	err       error
	// stale is set when the PDF was already finalized before the run started.
	stale bool
}

// Run executes the job identified by jobID. Jobs that are not queued, or whose PDF is
// locked by another worker, are skipped. Errors are returned only when the job could
// not be claimed because of a store or lock failure; the run outcome itself is
// persisted on the job row.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) error {
	ctx = r.logg.WithJobID(ctx, jobID.String())

	job, err := r.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "ingest.run.unknown_job")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}
	ctx = r.logg.WithPDFID(ctx, job.PDFID.String())
	if job.Status != enums.JobStatusQueued {
		r.logg.Info(r.logg.WithField(ctx, "job_status", job.Status), "ingest.run.skipped")
		return nil
	}

	lock, ok, err := acquireRunLock(ctx, r.store, job.PDFID, r.cfg.RunLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		r.logg.Info(ctx, "ingest.run.locked")
		return nil
	}
	defer func() {
		if err := lock.release(context.WithoutCancel(ctx)); err != nil {
			r.logg.Error(ctx, "ingest.run.unlock_failed", err)
		}
	}()

	startedAt := r.now()
	claimed, err := r.jobs.Claim(ctx, job.ID, r.workerID, startedAt)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		r.logg.Info(ctx, "ingest.run.skipped")
		return nil
	}

	r.metrics.RunStarted()
	defer r.metrics.RunFinished()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if r.cfg.RunTimeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeoutCause(runCtx, r.cfg.RunTimeout, errRunTimeout)
		defer stop()
	}
	unregister := r.registry.register(job.PDFID, cancel)
	defer unregister()

	r.logg.Info(r.logg.WithField(ctx, "worker_id", r.workerID), "ingest.run.start")
	outcome := r.execute(runCtx, job)
	r.complete(context.WithoutCancel(ctx), job, startedAt, outcome)
	return nil
}

func (r *Runner) execute(ctx context.Context, job *models.ExtractionJob) runOutcome {
	var progress jobs.Progress

	doc, err := r.pdfs.FindByID(ctx, job.PDFID)
	if err != nil {
		return runOutcome{err: fmt.Errorf("load pdf: %w", err)}
	}
	if doc.Status != enums.PDFStatusProcessing {
		return runOutcome{err: fmt.Errorf("pdf already %s", doc.Status), stale: true}
	}

	raw, err := codec.Decode(doc.Content)
	if err != nil {
		return runOutcome{err: err}
	}

	rendered, err := r.raster.Rasterize(ctx, raw)
	if err != nil {
		if stop := r.interrupted(ctx, job.PDFID); stop != nil {
			return runOutcome{err: stop}
		}
		return runOutcome{err: err}
	}

	if err := r.pdfs.SetPageCount(ctx, job.PDFID, len(rendered)); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "ingest.page_count.failed")
	}
	progress.PagesTotal = len(rendered)
	r.saveProgress(ctx, job.ID, progress)

	for _, page := range rendered {
		if stop := r.interrupted(ctx, job.PDFID); stop != nil {
			return runOutcome{progress: progress, err: stop}
		}

		pageCtx := r.logg.WithPage(ctx, page.Number)
		count, err := r.processPage(pageCtx, job.PDFID, page)
		if err != nil {
			if stop := r.interrupted(ctx, job.PDFID); stop != nil {
				return runOutcome{progress: progress, err: stop}
			}
			progress.PagesFailed++
			r.metrics.IncPage(metrics.PageFailed)
			r.logg.Warn(r.logg.WithField(pageCtx, "error", err.Error()), "ingest.page.failed")
		} else {
			progress.QuestionsExtracted += count
			r.metrics.IncPage(metrics.PageSucceeded)
			r.metrics.AddQuestions(count)
			r.logg.Debug(r.logg.WithField(pageCtx, "questions", count), "ingest.page.complete")
		}
		r.saveProgress(ctx, job.ID, progress)
	}

	status := enums.PDFStatusProcessed
	if r.cfg.PartialStatus && progress.PagesFailed > 0 {
		status = enums.PDFStatusPartiallyProcessed
	}
	return runOutcome{pdfStatus: status, progress: progress}
}

// processPage persists the page image, extracts its questions and inserts them.
func (r *Runner) processPage(ctx context.Context, pdfID uuid.UUID, page rasterizer.Page) (int, error) {
	if r.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PageTimeout)
		defer cancel()
	}

	var imageID *uuid.UUID
	if r.cfg.PersistPageImages {
		encoded, err := codec.Encode(page.Data)
		if err != nil {
			return 0, fmt.Errorf("encode page image: %w", err)
		}
		img, err := r.pages.Create(ctx, &models.PageImage{
			PDFID:      pdfID,
			PageNumber: page.Number,
			ImageData:  encoded,
			MimeType:   page.MimeType,
			Width:      page.Width,
			Height:     page.Height,
		})
		if err != nil {
			return 0, fmt.Errorf("store page image: %w", err)
		}
		id := img.ID
		imageID = &id
	}

	records, err := r.extractor.Extract(ctx, page)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]models.Question, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.Question{
			PDFID:          pdfID,
			PageNumber:     page.Number,
			ImageID:        imageID,
			Text:           rec.Text,
			Options:        dbtypes.StringList(rec.Options),
			Answer:         rec.Answer,
			ContainsFigure: rec.ContainsFigure,
		})
	}
	if err := r.questions.CreateBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("store questions: %w", err)
	}
	return len(rows), nil
}

// interrupted reports why the run must stop at this boundary, or nil to continue.
func (r *Runner) interrupted(ctx context.Context, pdfID uuid.UUID) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if r.flags.raised(ctx, pdfID) {
		return errRunCanceled
	}
	return nil
}

func (r *Runner) saveProgress(ctx context.Context, jobID uuid.UUID, progress jobs.Progress) {
	if err := r.jobs.UpdateProgress(context.WithoutCancel(ctx), jobID, progress); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "ingest.progress.failed")
	}
}

func (r *Runner) complete(ctx context.Context, job *models.ExtractionJob, startedAt time.Time, outcome runOutcome) {
	now := r.now()
	summary := RunSummary{
		JobID:      job.ID,
		PDFID:      job.PDFID,
		Attempts:   job.Attempts + 1,
		Progress:   outcome.progress,
		StartedAt:  startedAt,
		FinishedAt: now,
	}

	if outcome.err == nil {
		summary.JobStatus = enums.JobStatusSucceeded
		summary.PDFStatus = outcome.pdfStatus
		if r.finishJob(ctx, job.ID, summary, "") {
			finalized, err := r.pdfs.Finalize(ctx, job.PDFID, pdfs.Outcome{Status: outcome.pdfStatus, At: now})
			switch {
			case err != nil:
				r.logg.Error(ctx, "ingest.finalize.failed", err)
			case !finalized:
				r.logg.Warn(ctx, "ingest.finalize.skipped")
			}
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"status":              outcome.pdfStatus,
			"pages_total":         outcome.progress.PagesTotal,
			"pages_failed":        outcome.progress.PagesFailed,
			"questions_extracted": outcome.progress.QuestionsExtracted,
		}), "ingest.run.complete")
	} else {
		summary.JobStatus = enums.JobStatusFailed
		if errors.Is(outcome.err, errRunCanceled) {
			summary.JobStatus = enums.JobStatusCanceled
		}
		summary.Error = outcome.err.Error()
		if r.finishJob(ctx, job.ID, summary, summary.Error) && !outcome.stale {
			summary.PDFStatus = r.fin.applyFailurePolicy(ctx, job.PDFID, summary.Error, now)
		}
		r.logg.Error(r.logg.WithField(ctx, "job_status", summary.JobStatus), "ingest.run.aborted", outcome.err)
	}

	r.metrics.ObserveRun(runMetricOutcome(summary), now.Sub(startedAt))
	r.recorder.Record(ctx, summary)
	if err := r.flags.clear(ctx, job.PDFID); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "ingest.cancel_flag.clear_failed")
	}
}

func (r *Runner) finishJob(ctx context.Context, jobID uuid.UUID, summary RunSummary, lastError string) bool {
	finished, err := r.jobs.Finish(ctx, jobID, jobs.Result{
		Status:    summary.JobStatus,
		Progress:  summary.Progress,
		LastError: lastError,
		At:        summary.FinishedAt,
	})
	if err != nil {
		r.logg.Error(ctx, "ingest.job.finish_failed", err)
		return false
	}
	if !finished {
		r.logg.Warn(ctx, "ingest.job.already_finished")
	}
	return finished
}

// Abandon fails a stale job of this process and cancels it if it is still executing.
func (r *Runner) Abandon(ctx context.Context, job models.ExtractionJob, reason string) (bool, error) {
	ok, err := r.fin.Abandon(ctx, job, reason)
	if ok {
		r.registry.cancel(job.PDFID)
	}
	return ok, err
}

// CancelLocal cancels a run executing in this process.
func (r *Runner) CancelLocal(pdfID uuid.UUID) bool {
	return r.registry.cancel(pdfID)
}

func (r *Runner) now() time.Time {
	return r.clock().UTC()
}

func runMetricOutcome(summary RunSummary) string {
	switch summary.JobStatus {
	case enums.JobStatusSucceeded:
		if summary.PDFStatus == enums.PDFStatusPartiallyProcessed {
			return metrics.OutcomePartial
		}
		return metrics.OutcomeProcessed
	case enums.JobStatusCanceled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}
