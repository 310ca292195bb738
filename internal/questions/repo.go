package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// Repository persists extracted questions. Rows are insert-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.Question) error
	ListByPDF(ctx context.Context, pdfID uuid.UUID) ([]models.Question, error)
	List(ctx context.Context, params pagination.Params) ([]models.Question, string, error)
	CountByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a question repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// CreateBatch inserts one page worth of questions in a single statement. created_at is
// spaced by a microsecond per row and never falls behind the newest stored question,
// so insertion order survives timestamp precision and wall clock steps.
func (r *repository) CreateBatch(ctx context.Context, rows []models.Question) error {
	if len(rows) == 0 {
		return nil
	}
	start, err := r.nextCreatedAt(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = start.Add(time.Duration(i) * time.Microsecond)
		}
	}
	return r.DB(ctx).Create(&rows).Error
}

func (r *repository) nextCreatedAt(ctx context.Context, now time.Time) (time.Time, error) {
	now = now.Truncate(time.Microsecond)
	var latest models.Question
	err := r.DB(ctx).
		Select("created_at").
		Order("created_at DESC").
		Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load latest question timestamp: %w", err)
	}
	if floor := latest.CreatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond); now.Before(floor) {
		return floor, nil
	}
	return now, nil
}

// ListByPDF returns every question of a PDF ordered by page, then insertion.
func (r *repository) ListByPDF(ctx context.Context, pdfID uuid.UUID) ([]models.Question, error) {
	var rows []models.Question
	err := r.DB(ctx).
		Where("pdf_id = ?", pdfID).
		Order("page_number ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns questions across PDFs in insertion order. Zero params return every row.
func (r *repository) List(ctx context.Context, params pagination.Params) ([]models.Question, string, error) {
	return repo.KeysetPage(r.DB(ctx).Model(&models.Question{}), "created_at", params, func(q models.Question) pagination.Cursor {
		return pagination.Cursor{At: q.CreatedAt, ID: q.ID}
	})
}

func (r *repository) CountByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Question{}).Where("pdf_id = ?", pdfID).Count(&count).Error
	return count, err
}
