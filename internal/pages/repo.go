package pages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
)

// Repository persists page images. Rows are insert-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, page *models.PageImage) (*models.PageImage, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PageImage, error)
	CountByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a page image repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, page *models.PageImage) (*models.PageImage, error) {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now().UTC()
	}
	if err := r.DB(ctx).Create(page).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PageImage, error) {
	var page models.PageImage
	if err := r.DB(ctx).Where("id = ?", id).First(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *repository) CountByPDF(ctx context.Context, pdfID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.PageImage{}).Where("pdf_id = ?", pdfID).Count(&count).Error
	return count, err
}
