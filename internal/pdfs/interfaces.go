package pdfs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// Repository defines persistence operations for PDF documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doc *models.PDFDocument) (*models.PDFDocument, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error)
	FindMetaByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error)
	List(ctx context.Context, params pagination.Params) ([]models.PDFDocument, string, error)
	SetPageCount(ctx context.Context, id uuid.UUID, pages int) error
	Finalize(ctx context.Context, id uuid.UUID, outcome Outcome) (bool, error)
}

// Outcome describes the terminal transition applied to a processing PDF.
type Outcome struct {
	Status        enums.PDFStatus
	FailureReason string
	At            time.Time
}
