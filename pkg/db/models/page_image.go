package models

import (
	"time"

	"github.com/google/uuid"
)

// PageImage stores one rasterized page of a PDF. Rows are never updated.
type PageImage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PDFID      uuid.UUID `gorm:"column:pdf_id;type:uuid;not null;index:idx_page_images_pdf_page,priority:1"`
	PageNumber int       `gorm:"column:page_number;not null;index:idx_page_images_pdf_page,priority:2"`
	ImageData  string    `gorm:"column:image_data;type:text;not null"`
	MimeType   string    `gorm:"column:mime_type;not null"`
	Width      int       `gorm:"column:width;not null"`
	Height     int       `gorm:"column:height;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}
