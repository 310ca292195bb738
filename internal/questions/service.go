package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/internal/repo"
	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

// ErrInvalidCursor is returned for cursors that cannot be decoded.
var ErrInvalidCursor = repo.ErrInvalidCursor

// Service exposes question retrieval.
type Service interface {
	ByPDF(ctx context.Context, rawPDFID string) ([]QuestionDTO, error)
	List(ctx context.Context, params pagination.Params) ([]QuestionDTO, string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("question repository required")
	}
	return &service{repo: repo}, nil
}

// ByPDF does not distinguish an unknown PDF from one without questions.
func (s *service) ByPDF(ctx context.Context, rawPDFID string) ([]QuestionDTO, error) {
	pdfID, err := uuid.Parse(rawPDFID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no questions found for this pdf")
	}
	rows, err := s.repo.ListByPDF(ctx, pdfID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list questions by pdf")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no questions found for this pdf")
	}
	return fromModels(rows), nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]QuestionDTO, string, error) {
	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list questions")
	}
	if len(rows) == 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no questions found")
	}
	return fromModels(rows), next, nil
}
