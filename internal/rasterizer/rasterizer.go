package rasterizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

// ErrRasterization marks any failure turning PDF bytes into page images.
var ErrRasterization = errors.New("rasterization failed")

// MimeTypePNG is the only output format produced by the engines.
const MimeTypePNG = "image/png"

// Page is one rendered page. Number is 1-based.
type Page struct {
	Number   int
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Rasterizer renders every page of a PDF, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]Page, error)
}

type engine interface {
	Name() string
	Render(ctx context.Context, pdf []byte, dpi int) ([]Page, error)
}

// Service validates input with a structural preflight and then renders it with the
// configured engine.
type Service struct {
	engine   engine
	dpi      int
	maxPages int
	logg     *logger.Logger
}

// New builds the rasterizer selected by cfg.Engine.
func New(cfg config.RasterizerConfig, logg *logger.Logger) (*Service, error) {
	var eng engine
	switch cfg.Engine {
	case "", config.RasterEngineFitz:
		eng = fitzEngine{}
	case config.RasterEnginePdftoppm:
		eng = NewPdftoppm(cfg.PdftoppmPath, ExecRunner{})
	default:
		return nil, fmt.Errorf("unknown rasterizer engine %q", cfg.Engine)
	}
	return newService(eng, cfg, logg), nil
}

func newService(eng engine, cfg config.RasterizerConfig, logg *logger.Logger) *Service {
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 150
	}
	return &Service{engine: eng, dpi: dpi, maxPages: cfg.MaxPages, logg: logg}
}

// Rasterize returns the pages of pdf. Every error wraps ErrRasterization; context
// cancellation is wrapped as well so callers can tell the two apart with errors.Is.
func (s *Service) Rasterize(ctx context.Context, pdf []byte) ([]Page, error) {
	count, err := PageCount(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: preflight: %w", ErrRasterization, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRasterization)
	}
	if s.maxPages > 0 && count > s.maxPages {
		return nil, fmt.Errorf("%w: %d pages exceeds limit of %d", ErrRasterization, count, s.maxPages)
	}

	pages, err := s.engine.Render(ctx, pdf, s.dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRasterization, s.engine.Name(), err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s rendered no pages", ErrRasterization, s.engine.Name())
	}
	for i := range pages {
		if pages[i].Number != i+1 {
			return nil, fmt.Errorf("%w: page %d rendered out of order", ErrRasterization, pages[i].Number)
		}
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"engine": s.engine.Name(), "pages": len(pages), "dpi": s.dpi})
		s.logg.Debug(ctx, "rasterizer.render.complete")
	}
	return pages, nil
}
