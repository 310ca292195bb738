package pages

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/codec"
	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
)

// DefaultMimeType is used for rows written before mime types were stored.
const DefaultMimeType = "image/png"

// Image is a decoded page image ready to stream.
type Image struct {
	ID         uuid.UUID
	PDFID      uuid.UUID
	PageNumber int
	MimeType   string
	Data       []byte
}

// Service exposes page image retrieval.
type Service interface {
	Image(ctx context.Context, rawID string) (*Image, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("page repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Image(ctx context.Context, rawID string) (*Image, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "image not found")
	}
	page, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "image not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load page image")
	}
	data, err := codec.Decode(page.ImageData)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruptBlob, err, "decode page image")
	}
	mime := page.MimeType
	if mime == "" {
		mime = DefaultMimeType
	}
	return &Image{
		ID:         page.ID,
		PDFID:      page.PDFID,
		PageNumber: page.PageNumber,
		MimeType:   mime,
		Data:       data,
	}, nil
}
