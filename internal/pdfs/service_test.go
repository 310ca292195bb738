package pdfs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/pkg/codec"
	"github.com/angelmondragon/testhub-backend/pkg/db/models"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/testhub-backend/pkg/errors"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

type stubRepo struct {
	Repository
	doc     *models.PDFDocument
	docs    []models.PDFDocument
	findErr error
	listErr error
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.doc == nil || s.doc.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.doc, nil
}

func (s *stubRepo) FindMetaByID(ctx context.Context, id uuid.UUID) (*models.PDFDocument, error) {
	doc, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := *doc
	meta.Content = ""
	return &meta, nil
}

func (s *stubRepo) List(ctx context.Context, params pagination.Params) ([]models.PDFDocument, string, error) {
	return s.docs, "", s.listErr
}

type stubJobs struct {
	job *models.ExtractionJob
	err error
}

func (s stubJobs) FindByPDFID(ctx context.Context, pdfID uuid.UUID) (*models.ExtractionJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.job == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.job, nil
}

func newTestService(t *testing.T, repo Repository, jobs jobReader) Service {
	t.Helper()
	svc, err := NewService(repo, jobs)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func TestDownloadDecodesContent(t *testing.T) {
	t.Parallel()

	payload := []byte("%PDF-1.4 sample")
	encoded, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := &models.PDFDocument{ID: uuid.New(), Name: "exam.pdf", Content: encoded, Status: enums.PDFStatusProcessed}
	svc := newTestService(t, &stubRepo{doc: doc}, stubJobs{})

	got, err := svc.Download(context.Background(), doc.ID.String())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(got.Data) != string(payload) {
		t.Fatalf("unexpected bytes %q", got.Data)
	}
	if got.Name != "exam.pdf" || got.Status != enums.PDFStatusProcessed {
		t.Fatalf("unexpected download metadata %+v", got)
	}
}

func TestDownloadUnknownAndMalformedIDsAreNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{}, stubJobs{})
	for _, raw := range []string{uuid.NewString(), "not-a-uuid", "507f1f77bcf86cd799439011"} {
		_, err := svc.Download(context.Background(), raw)
		if codeOf(err) != pkgerrors.CodeNotFound {
			t.Fatalf("%q: expected NOT_FOUND, got %v", raw, err)
		}
	}
}

func TestDownloadCorruptContent(t *testing.T) {
	t.Parallel()

	doc := &models.PDFDocument{ID: uuid.New(), Name: "bad.pdf", Content: "!!not-base64!!"}
	svc := newTestService(t, &stubRepo{doc: doc}, stubJobs{})

	_, err := svc.Download(context.Background(), doc.ID.String())
	if codeOf(err) != pkgerrors.CodeCorruptBlob {
		t.Fatalf("expected CORRUPT_BLOB, got %v", err)
	}
	if !errors.Is(err, codec.ErrCorruptBlob) {
		t.Fatalf("expected wrapped codec.ErrCorruptBlob, got %v", err)
	}
}

func TestDownloadStoreFailureIsInternal(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{findErr: errors.New("connection reset")}, stubJobs{})
	_, err := svc.Download(context.Background(), uuid.NewString())
	if codeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestListEmptyIsNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{}, stubJobs{})
	_, _, err := svc.List(context.Background(), pagination.Params{})
	if codeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestListInvalidCursorIsValidationError(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{listErr: ErrInvalidCursor}, stubJobs{})
	_, _, err := svc.List(context.Background(), pagination.Params{Cursor: "x"})
	if codeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestListMapsSummaries(t *testing.T) {
	t.Parallel()

	docs := []models.PDFDocument{
		{ID: uuid.New(), Name: "one.pdf", Status: enums.PDFStatusProcessing},
		{ID: uuid.New(), Name: "two.pdf", Status: enums.PDFStatusProcessed},
	}
	svc := newTestService(t, &stubRepo{docs: docs}, stubJobs{})
	out, _, err := svc.List(context.Background(), pagination.Params{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 || out[1].Name != "two.pdf" || out[1].Status != enums.PDFStatusProcessed {
		t.Fatalf("unexpected summaries %+v", out)
	}
}

func TestStatusIncludesJob(t *testing.T) {
	t.Parallel()

	doc := &models.PDFDocument{ID: uuid.New(), Name: "exam.pdf", Content: "x", Status: enums.PDFStatusProcessing}
	job := &models.ExtractionJob{ID: uuid.New(), PDFID: doc.ID, Status: enums.JobStatusRunning, PagesTotal: 4}

	svc := newTestService(t, &stubRepo{doc: doc}, stubJobs{job: job})
	view, err := svc.Status(context.Background(), doc.ID.String())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if view.Job == nil || view.Job.Status != enums.JobStatusRunning || view.Job.PagesTotal != 4 {
		t.Fatalf("unexpected job view %+v", view.Job)
	}

	svc = newTestService(t, &stubRepo{doc: doc}, stubJobs{})
	view, err = svc.Status(context.Background(), doc.ID.String())
	if err != nil {
		t.Fatalf("Status without job: %v", err)
	}
	if view.Job != nil {
		t.Fatalf("expected nil job, got %+v", view.Job)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil, stubJobs{}); err == nil {
		t.Fatalf("expected repository requirement")
	}
	if _, err := NewService(&stubRepo{}, nil); err == nil {
		t.Fatalf("expected job repository requirement")
	}
}
