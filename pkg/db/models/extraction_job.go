package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/pkg/enums"
)

// ExtractionJob tracks the single background run owned by a PDF submission.
type ExtractionJob struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PDFID              uuid.UUID       `gorm:"column:pdf_id;type:uuid;not null;uniqueIndex:ux_extraction_jobs_pdf_id"`
	Status             enums.JobStatus `gorm:"column:status;type:text;not null;index:idx_extraction_jobs_status_queued,priority:1"`
	Attempts           int             `gorm:"column:attempts;not null;default:0"`
	PagesTotal         int             `gorm:"column:pages_total;not null;default:0"`
	PagesFailed        int             `gorm:"column:pages_failed;not null;default:0"`
	QuestionsExtracted int             `gorm:"column:questions_extracted;not null;default:0"`
	LastError          *string         `gorm:"column:last_error"`
	WorkerID           *string         `gorm:"column:worker_id"`
	QueuedAt           time.Time       `gorm:"column:queued_at;not null;index:idx_extraction_jobs_status_queued,priority:2"`
	StartedAt          *time.Time      `gorm:"column:started_at"`
	FinishedAt         *time.Time      `gorm:"column:finished_at"`
}
