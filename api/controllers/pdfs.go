package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/testhub-backend/api/responses"
	"github.com/angelmondragon/testhub-backend/api/validators"
	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/pagination"
)

const (
	uploadField      = "file"
	uploadMessage    = "PDF uploaded successfully."
	pdfStatusHeader  = "X-PDF-Status"
	pdfContentType   = "application/pdf"
	cancelledMessage = "cancel requested"
)

// IngestService accepts uploads and cancels runs.
type IngestService interface {
	Submit(ctx context.Context, input ingest.SubmitInput) (*ingest.SubmitResult, error)
	Cancel(ctx context.Context, rawPDFID string) error
}

type uploadResponse struct {
	Message  string          `json:"message"`
	PDFID    string          `json:"pdf_id"`
	FileName string          `json:"file_name"`
	Status   enums.PDFStatus `json:"status"`
}

// UploadPDF stores a multipart "file" and schedules its extraction run.
func UploadPDF(svc IngestService, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, err := validators.ReadUpload(w, r, uploadField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Submit(r.Context(), ingest.SubmitInput{FileName: upload.Name, Data: upload.Data})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusCreated, uploadResponse{
			Message:  uploadMessage,
			PDFID:    res.PDFID.String(),
			FileName: res.FileName,
			Status:   res.Status,
		})
	}
}

// DownloadPDF returns the original bytes as an attachment.
func DownloadPDF(svc pdfs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.Download(r.Context(), chi.URLParam(r, "pdfId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(pdfStatusHeader, string(doc.Status))
		responses.WriteAttachment(w, pdfContentType, doc.Name, doc.Data)
	}
}

func PDFStatus(svc pdfs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Status(r.Context(), chi.URLParam(r, "pdfId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(pdfStatusHeader, string(view.PDF.Status))
		responses.WriteSuccess(w, view)
	}
}

// CancelPDF asks the in-flight run to stop at its next page boundary.
func CancelPDF(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cancel(r.Context(), chi.URLParam(r, "pdfId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusAccepted, cancelledMessage)
	}
}

// ListPDFs returns metadata only. Content is never included.
func ListPDFs(svc pdfs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setNextCursor(w, next)
		responses.WriteSuccess(w, list)
	}
}

func setNextCursor(w http.ResponseWriter, next string) {
	if next != "" {
		w.Header().Set(pagination.NextCursorHeader, next)
	}
}
