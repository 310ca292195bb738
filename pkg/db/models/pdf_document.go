package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/pkg/enums"
)

// PDFDocument is an uploaded exam paper and its lifecycle state.
type PDFDocument struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Content       string          `gorm:"column:content;type:text;not null"`
	SizeBytes     int64           `gorm:"column:size_bytes;not null"`
	PageCount     *int            `gorm:"column:page_count"`
	Status        enums.PDFStatus `gorm:"column:status;type:text;not null;index:idx_pdf_documents_status"`
	FailureReason *string         `gorm:"column:failure_reason"`
	UploadedAt    time.Time       `gorm:"column:uploaded_at;not null"`
	ProcessedAt   *time.Time      `gorm:"column:processed_at"`
	FinalizedAt   *time.Time      `gorm:"column:finalized_at"`
}

// TableName keeps the acronym intact.
func (PDFDocument) TableName() string { return "pdf_documents" }
