package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/testhub-backend/api/responses"
	"github.com/angelmondragon/testhub-backend/internal/pages"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

func PageImage(svc pages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := svc.Image(r.Context(), chi.URLParam(r, "imageId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		name := fmt.Sprintf("page-%d.png", img.PageNumber)
		responses.WriteAttachment(w, img.MimeType, name, img.Data)
	}
}
