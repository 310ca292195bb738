package pdfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	"github.com/angelmondragon/testhub-backend/pkg/codec"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// ErrInvalidCursor is returned for cursors that cannot be decoded.
var ErrInvalidCursor = repo.ErrInvalidCursor

type jobReader interface {
	FindByPDFID(ctx context.Context, pdfID uuid.UUID) (*models.ExtractionJob, error)
}

// Service exposes read-only PDF projections.
type Service interface {
	Download(ctx context.Context, rawID string) (*Download, error)
	List(ctx context.Context, params pagination.Params) ([]Summary, string, error)
	Status(ctx context.Context, rawID string) (*StatusView, error)
}

type service struct {
	repo Repository
	jobs jobReader
}

// NewService builds the PDF read service.
func NewService(repo Repository, jobs jobReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pdf repository required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job repository required")
	}
	return &service{repo: repo, jobs: jobs}, nil
}

// ParseID treats malformed ids as unknown ids.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "pdf not found")
	}
	return id, nil
}

func (s *service) Download(ctx context.Context, rawID string) (*Download, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load pdf")
	}
	data, err := codec.Decode(doc.Content)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruptBlob, err, "decode pdf content")
	}
	return &Download{Name: doc.Name, Status: doc.Status, Data: data}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]Summary, string, error) {
	docs, next, err := s.repo.List(ctx, params)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pdfs")
	}
	if len(docs) == 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no pdfs found")
	}
	out := make([]Summary, 0, len(docs))
	for i := range docs {
		out = append(out, FromModel(&docs[i]))
	}
	return out, next, nil
}

func (s *service) Status(ctx context.Context, rawID string) (*StatusView, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindMetaByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load pdf")
	}
	view := &StatusView{PDF: FromModel(doc)}

	job, err := s.jobs.FindByPDFID(ctx, id)
	switch {
	case err == nil:
		view.Job = jobFromModel(job)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load extraction job")
	}
	return view, nil
}

func mapLookupError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pdf not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
