package pdfs

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
)

// Summary is the metadata projection of a PDF; content is never included.
type Summary struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Status        enums.PDFStatus `json:"status"`
	SizeBytes     int64           `json:"size_bytes"`
	PageCount     *int            `json:"page_count"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	UploadedAt    time.Time       `json:"uploaded_at"`
	ProcessedAt   *time.Time      `json:"processed_at"`
	FinalizedAt   *time.Time      `json:"finalized_at,omitempty"`
}

// Download carries decoded PDF bytes for the download endpoint.
type Download struct {
	Name   string
	Status enums.PDFStatus
	Data   []byte
}

// JobStatus is the run projection attached to the status endpoint.
type JobStatus struct {
	ID                 uuid.UUID       `json:"id"`
	Status             enums.JobStatus `json:"status"`
	Attempts           int             `json:"attempts"`
	PagesTotal         int             `json:"pages_total"`
	PagesFailed        int             `json:"pages_failed"`
	QuestionsExtracted int             `json:"questions_extracted"`
	LastError          *string         `json:"last_error,omitempty"`
	QueuedAt           time.Time       `json:"queued_at"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	FinishedAt         *time.Time      `json:"finished_at,omitempty"`
}

// StatusView combines the PDF lifecycle with its extraction job.
type StatusView struct {
	PDF Summary    `json:"pdf"`
	Job *JobStatus `json:"job"`
}

// FromModel maps a stored row to its metadata projection.
func FromModel(doc *models.PDFDocument) Summary {
	return Summary{
		ID:            doc.ID,
		Name:          doc.Name,
		Status:        doc.Status,
		SizeBytes:     doc.SizeBytes,
		PageCount:     doc.PageCount,
		FailureReason: doc.FailureReason,
		UploadedAt:    doc.UploadedAt,
		ProcessedAt:   doc.ProcessedAt,
		FinalizedAt:   doc.FinalizedAt,
	}
}

func jobFromModel(job *models.ExtractionJob) *JobStatus {
	if job == nil {
		return nil
	}
	return &JobStatus{
		ID:                 job.ID,
		Status:             job.Status,
		Attempts:           job.Attempts,
		PagesTotal:         job.PagesTotal,
		PagesFailed:        job.PagesFailed,
		QuestionsExtracted: job.QuestionsExtracted,
		LastError:          job.LastError,
		QueuedAt:           job.QueuedAt,
		StartedAt:          job.StartedAt,
		FinishedAt:         job.FinishedAt,
	}
}
