package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/pkg/codec"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

const pdfExtension = ".pdf"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type localCanceler interface {
	CancelLocal(pdfID uuid.UUID) bool
}

// CoordinatorParams wires the request-path side of ingestion.
type CoordinatorParams struct {
	Logger     *logger.Logger
	TX         txRunner
	PDFs       pdfs.Repository
	Jobs       jobs.Repository
	Dispatcher Dispatcher
	Canceler   localCanceler
	Store      RunStore
	MaxBytes   int64
	CancelTTL  time.Duration
	Clock      func() time.Time
}

// Coordinator accepts uploads and schedules their extraction runs.
type Coordinator struct {
	logg       *logger.Logger
	tx         txRunner
	pdfs       pdfs.Repository
	jobs       jobs.Repository
	dispatcher Dispatcher
	canceler   localCanceler
	flags      cancelFlags
	maxBytes   int64
	clock      func() time.Time
}

// SubmitInput is an uploaded file.
type SubmitInput struct {
	FileName string
	Data     []byte
}

// SubmitResult acknowledges an accepted upload.
type SubmitResult struct {
	PDFID    uuid.UUID
	JobID    uuid.UUID
	FileName string
	Status   enums.PDFStatus
}

// NewCoordinator validates params and builds a Coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.TX == nil:
		return nil, errors.New("transaction runner required")
	case params.PDFs == nil, params.Jobs == nil:
		return nil, errors.New("repositories required")
	case params.Dispatcher == nil:
		return nil, errors.New("dispatcher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := params.CancelTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Coordinator{
		logg:       params.Logger,
		tx:         params.TX,
		pdfs:       params.PDFs,
		jobs:       params.Jobs,
		dispatcher: params.Dispatcher,
		canceler:   params.Canceler,
		flags:      cancelFlags{store: params.Store, ttl: ttl},
		maxBytes:   params.MaxBytes,
		clock:      clock,
	}, nil
}

// ValidateFileName rejects names that do not end in .pdf, ignoring case.
func ValidateFileName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || !strings.HasSuffix(strings.ToLower(trimmed), pdfExtension) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Only PDF files are allowed.")
	}
	return nil
}

// Submit stores the PDF with status processing, creates its job and dispatches it.
// The acknowledgment never waits on the run.
func (c *Coordinator) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if err := ValidateFileName(input.FileName); err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uploaded file is empty")
	}
	if c.maxBytes > 0 && int64(len(input.Data)) > c.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodePayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", c.maxBytes))
	}

	content, err := codec.Encode(input.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode pdf")
	}

	now := c.clock().UTC()
	doc := &models.PDFDocument{
		Name:       strings.TrimSpace(input.FileName),
		Content:    content,
		SizeBytes:  int64(len(input.Data)),
		Status:     enums.PDFStatusProcessing,
		UploadedAt: now,
	}
	job := &models.ExtractionJob{Status: enums.JobStatusQueued, QueuedAt: now}

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := c.pdfs.WithTx(tx).Create(ctx, doc); err != nil {
			return fmt.Errorf("insert pdf: %w", err)
		}
		job.PDFID = doc.ID
		if _, err := c.jobs.WithTx(tx).Create(ctx, job); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store pdf")
	}

	logCtx := c.logg.WithJobID(c.logg.WithPDFID(ctx, doc.ID.String()), job.ID.String())
	if err := c.dispatcher.Dispatch(ctx, Task{JobID: job.ID, PDFID: doc.ID}); err != nil {
		c.logg.Error(logCtx, "ingest.dispatch.failed", err)
	} else {
		c.logg.Info(c.logg.WithField(logCtx, "size_bytes", doc.SizeBytes), "ingest.submitted")
	}

	return &SubmitResult{
		PDFID:    doc.ID,
		JobID:    job.ID,
		FileName: doc.Name,
		Status:   doc.Status,
	}, nil
}

// Cancel stops the in-flight run of a PDF at its next page boundary.
func (c *Coordinator) Cancel(ctx context.Context, rawID string) error {
	pdfID, err := pdfs.ParseID(rawID)
	if err != nil {
		return err
	}
	if _, err := c.pdfs.FindMetaByID(ctx, pdfID); err != nil {
		return lookupError(err, "pdf not found")
	}
	job, err := c.jobs.FindByPDFID(ctx, pdfID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeConflict, "extraction run is not in progress")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load extraction job")
	}
	if job.Status != enums.JobStatusRunning {
		return pkgerrors.New(pkgerrors.CodeConflict, "extraction run is not in progress").
			WithDetails(map[string]any{"job_status": job.Status})
	}

	ctx = c.logg.WithPDFID(ctx, pdfID.String())
	if err := c.flags.raise(ctx, pdfID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to signal cancel")
	}
	local := c.canceler != nil && c.canceler.CancelLocal(pdfID)
	c.logg.Info(c.logg.WithField(ctx, "local", local), "ingest.cancel.requested")
	return nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load pdf")
}
