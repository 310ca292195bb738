package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/testhub-backend/pkg/db/types"
)

// Question is a multiple-choice item extracted from a single page.
type Question struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PDFID          uuid.UUID          `gorm:"column:pdf_id;type:uuid;not null;index:idx_questions_pdf_page,priority:1"`
	PageNumber     int                `gorm:"column:page_number;not null;index:idx_questions_pdf_page,priority:2"`
	ImageID        *uuid.UUID         `gorm:"column:image_id;type:uuid"`
	Text           string             `gorm:"column:text;type:text;not null"`
	Options        dbtypes.StringList `gorm:"column:options;type:jsonb;not null"`
	Answer         *string            `gorm:"column:answer"`
	ContainsFigure bool               `gorm:"column:contains_figure_or_diagram;not null;default:false"`
	CreatedAt      time.Time          `gorm:"column:created_at;not null"`
}
