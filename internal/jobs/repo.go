package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	"github.com/angelmondragon/testhub-backend/pkg/db"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
)

// ErrJobExists is returned when a PDF already has an extraction job.
var ErrJobExists = errors.New("extraction job already exists for pdf")

// Repository persists extraction jobs and guards their state transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.ExtractionJob) (*models.ExtractionJob, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ExtractionJob, error)
	FindByPDFID(ctx context.Context, pdfID uuid.UUID) (*models.ExtractionJob, error)
	Claim(ctx context.Context, id uuid.UUID, workerID string, at time.Time) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress Progress) error
	Finish(ctx context.Context, id uuid.UUID, result Result) (bool, error)
	Requeue(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListQueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error)
	ListRunningBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error)
}

// Progress is the running tally of a job.
type Progress struct {
	PagesTotal         int
	PagesFailed        int
	QuestionsExtracted int
}

// Result is the terminal state written when a job stops running.
type Result struct {
	Status    enums.JobStatus
	Progress  Progress
	LastError string
	At        time.Time
}

type repository struct {
	repo.Base
}

// NewRepository builds a job repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, job *models.ExtractionJob) (*models.ExtractionJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = enums.JobStatusQueued
	}
	if err := r.DB(ctx).Create(job).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: %s", ErrJobExists, job.PDFID)
		}
		return nil, err
	}
	return job, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ExtractionJob, error) {
	var job models.ExtractionJob
	if err := r.DB(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByPDFID(ctx context.Context, pdfID uuid.UUID) (*models.ExtractionJob, error) {
	var job models.ExtractionJob
	if err := r.DB(ctx).Where("pdf_id = ?", pdfID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim moves a queued job to running. Exactly one caller can win the transition.
func (r *repository) Claim(ctx context.Context, id uuid.UUID, workerID string, at time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.ExtractionJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusQueued).
		Updates(map[string]any{
			"status":     enums.JobStatusRunning,
			"started_at": at,
			"worker_id":  workerID,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateProgress(ctx context.Context, id uuid.UUID, progress Progress) error {
	return r.DB(ctx).Model(&models.ExtractionJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusRunning).
		Updates(map[string]any{
			"pages_total":         progress.PagesTotal,
			"pages_failed":        progress.PagesFailed,
			"questions_extracted": progress.QuestionsExtracted,
		}).Error
}

// Finish records the terminal state of a running job. It reports false when the job
// was no longer running, e.g. after the sweeper failed it.
func (r *repository) Finish(ctx context.Context, id uuid.UUID, result Result) (bool, error) {
	at := result.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	updates := map[string]any{
		"status":              result.Status,
		"finished_at":         at,
		"pages_total":         result.Progress.PagesTotal,
		"pages_failed":        result.Progress.PagesFailed,
		"questions_extracted": result.Progress.QuestionsExtracted,
	}
	if result.LastError != "" {
		updates["last_error"] = result.LastError
	}
	res := r.DB(ctx).Model(&models.ExtractionJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Requeue bumps queued_at of a still-queued job so the next sweep skips it.
func (r *repository) Requeue(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.ExtractionJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusQueued).
		Update("queued_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListQueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error) {
	var out []models.ExtractionJob
	err := r.DB(ctx).
		Where("status = ? AND queued_at < ?", enums.JobStatusQueued, cutoff).
		Order("queued_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *repository) ListRunningBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExtractionJob, error) {
	var out []models.ExtractionJob
	err := r.DB(ctx).
		Where("status = ? AND started_at < ?", enums.JobStatusRunning, cutoff).
		Order("started_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
