// Package pipeline assembles the extraction runner and its collaborators for the
// binaries that execute runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/extraction"
	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pages"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/internal/rasterizer"
	"github.com/angelmondragon/testhub-backend/pkg/bigquery"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/instance"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// Params carries the shared clients a pipeline is built from.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *gorm.DB
	Store      ingest.RunStore
	Registerer prometheus.Registerer
	Extractor  extraction.Extractor
	Rasterizer rasterizer.Rasterizer
	Recorder   ingest.RunRecorder
}

// Pipeline holds a ready Runner plus the clients it owns.
type Pipeline struct {
	Runner  *ingest.Runner
	Metrics *metrics.PipelineMetrics
	Jobs    jobs.Repository
	closers []func() error
}

// Build wires repositories, the rasterizer, the Vertex AI extractor and the optional
// BigQuery recorder into a Runner. Extractor, Rasterizer and Recorder may be injected.
func Build(ctx context.Context, params Params) (*Pipeline, error) {
	cfg, logg := params.Config, params.Logger
	if cfg == nil || logg == nil || params.DB == nil {
		return nil, errors.New("config, logger and database are required")
	}
	p := &Pipeline{
		Metrics: metrics.NewPipelineMetrics(params.Registerer),
		Jobs:    jobs.NewRepository(params.DB),
	}

	raster := params.Rasterizer
	if raster == nil {
		svc, err := rasterizer.New(cfg.Rasterizer, logg)
		if err != nil {
			return nil, fmt.Errorf("rasterizer: %w", err)
		}
		raster = svc
	}

	extractor := params.Extractor
	if extractor == nil {
		client, err := extraction.NewVertexClient(ctx, cfg.GCP, cfg.Extraction, logg)
		if err != nil {
			return nil, fmt.Errorf("vertex client: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		extractor = client
	}

	recorder := params.Recorder
	if recorder == nil && cfg.FeatureFlags.ExportRuns {
		bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("bigquery client: %w", err)
		}
		p.closers = append(p.closers, bq.Close)
		if err := ingest.EnsureRunsTable(ctx, bq, bq.RunsTable()); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("runs table: %w", err)
		}
		rec, err := ingest.NewBigQueryRecorder(bq, bq.RunsTable(), logg)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("run recorder: %w", err)
		}
		recorder = rec
	}

	pdfRepo := pdfs.NewRepository(params.DB)
	runner, err := ingest.NewRunner(ingest.RunnerParams{
		Config:     cfg.Pipeline,
		Logger:     logg,
		PDFs:       pdfRepo,
		Pages:      pages.NewRepository(params.DB),
		Questions:  questions.NewRepository(params.DB),
		Jobs:       p.Jobs,
		Rasterizer: raster,
		Extractor:  extractor,
		Store:      params.Store,
		Metrics:    p.Metrics,
		Recorder:   recorder,
		WorkerID:   instance.GetID(),
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("runner: %w", err)
	}
	p.Runner = runner
	return p, nil
}

// NewQueue starts the local worker pool configured for cfg.
func (p *Pipeline) NewQueue(cfg config.PipelineConfig, logg *logger.Logger) *ingest.Queue {
	return ingest.NewQueue(p.Runner, logg,
		ingest.WithWorkers(cfg.Workers),
		ingest.WithQueueSize(cfg.QueueSize),
		ingest.WithQueueMetrics(p.Metrics),
	)
}

// Close releases the clients Build created.
func (p *Pipeline) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, p.closers[i]())
	}
	p.closers = nil
	return errs
}
