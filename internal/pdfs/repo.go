package pdfs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// metaColumns is every column except the encoded content.
var metaColumns = []string{
	"id", "name", "size_bytes", "page_count", "status",
	"failure_reason", "uploaded_at", "processed_at", "finalized_at",
}

type repository struct {
	repo.Base
}

// NewRepository builds a PDF repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// Create assigns the id and upload time when absent and inserts the row.
func (r *repository) Create(ctx context.Context, doc *models.PDFDocument) (*models.PDFDocument, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = enums.PDFStatusProcessing
	}
	if err := r.DB(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error) {
	var doc models.PDFDocument
	if err := r.DB(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindMetaByID loads the row without its content column.
func (r *repository) FindMetaByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error) {
	var doc models.PDFDocument
	if err := r.DB(ctx).Select(metaColumns).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns metadata rows ordered by upload time. Zero params return every row.
func (r *repository) List(ctx context.Context, params pagination.Params) ([]models.PDFDocument, string, error) {
	query := r.DB(ctx).Model(&models.PDFDocument{}).Select(metaColumns)
	return repo.KeysetPage(query, "uploaded_at", params, func(d models.PDFDocument) pagination.Cursor {
		return pagination.Cursor{At: d.UploadedAt, ID: d.ID}
	})
}

func (r *repository) SetPageCount(ctx context.Context, id uuid.UUID, pages int) error {
	return r.DB(ctx).Model(&models.PDFDocument{}).Where("id = ?", id).Update("page_count", pages).Error
}

// Finalize moves a processing PDF to a terminal status. It reports false when the row
// was already finalized (or does not exist), leaving it untouched.
func (r *repository) Finalize(ctx context.Context, id uuid.UUID, outcome Outcome) (bool, error) {
	if !outcome.Status.IsTerminal() {
		return false, fmt.Errorf("finalize to non-terminal status %q", outcome.Status)
	}
	at := outcome.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	updates := map[string]any{
		"status":       outcome.Status,
		"finalized_at": at,
	}
	if outcome.Status == enums.PDFStatusProcessed {
		updates["processed_at"] = at
	}
	if outcome.Status == enums.PDFStatusFailed {
		reason := outcome.FailureReason
		if reason == "" {
			reason = "extraction run aborted"
		}
		updates["failure_reason"] = reason
	}

	res := r.DB(ctx).Model(&models.PDFDocument{}).
		Where("id = ? AND status = ?", id, enums.PDFStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
