package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/testhub-backend/api/controllers"
	"github.com/angelmondragon/testhub-backend/api/middleware"
	"github.com/angelmondragon/testhub-backend/internal/pages"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// Deps groups everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Ingest      controllers.IngestService
	PDFs        pdfs.Service
	Pages       pages.Service
	Questions   questions.Service
	Ready       map[string]controllers.Pinger
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Get("/", controllers.Root())
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	upload := controllers.UploadPDF(deps.Ingest, cfg.Upload.MaxBytes(), logg)
	r.Post("/upload-pdf", upload)
	r.Post("/upload-pdf/", upload)

	r.Route("/pdf/{pdfId}", func(r chi.Router) {
		r.Get("/", controllers.DownloadPDF(deps.PDFs, logg))
		r.Get("/status", controllers.PDFStatus(deps.PDFs, logg))
		r.Post("/cancel", controllers.CancelPDF(deps.Ingest, logg))
	})
	r.Get("/pdfs", controllers.ListPDFs(deps.PDFs, logg))

	r.Get("/image/{imageId}", controllers.PageImage(deps.Pages, logg))

	r.Get("/questions", controllers.ListQuestions(deps.Questions, logg))
	r.Get("/questions/{pdfId}", controllers.QuestionsByPDF(deps.Questions, logg))

	return r
}
