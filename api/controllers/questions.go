package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/testhub-backend/api/responses"
	"github.com/angelmondragon/testhub-backend/api/validators"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

// QuestionsByPDF lists a PDF's questions ordered by page then insertion.
func QuestionsByPDF(svc questions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ByPDF(r.Context(), chi.URLParam(r, "pdfId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ListQuestions(svc questions.Service, logg *logger.Logger) http.HandlerFunc {
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
