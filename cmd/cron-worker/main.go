package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/testhub-backend/internal/cron"
	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/pkg/bigquery"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/db"
	"github.com/angelmondragon/testhub-backend/pkg/instance"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
	"github.com/angelmondragon/testhub-backend/pkg/migrate"
	"github.com/angelmondragon/testhub-backend/pkg/pubsub"
	"github.com/angelmondragon/testhub-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	// With local dispatch the api process owns the queue and runs the sweeper itself.
	if cfg.Pipeline.Dispatch != config.DispatchPubSub {
		requireResource(ctx, logg, "dispatch mode", fmt.Errorf("cron-worker requires %s=%s", config.EnvPipelineDispatch, config.DispatchPubSub))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()
	dispatcher, err := ingest.NewPubSubDispatcher(pubsubClient.ExtractionPublisher())
	requireResource(ctx, logg, "pubsub dispatcher", err)

	var recorder ingest.RunRecorder
	if cfg.FeatureFlags.ExportRuns {
		bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		defer func() {
			if err := bq.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		requireResource(ctx, logg, "bigquery runs table", ingest.EnsureRunsTable(ctx, bq, bq.RunsTable()))
		recorder, err = ingest.NewBigQueryRecorder(bq, bq.RunsTable(), logg)
		requireResource(ctx, logg, "run recorder", err)
	}

	jobRepo := jobs.NewRepository(dbClient.DB())
	finalizer, err := ingest.NewFinalizer(ingest.FinalizerParams{
		Config:   cfg.Pipeline,
		Logger:   logg,
		PDFs:     pdfs.NewRepository(dbClient.DB()),
		Jobs:     jobRepo,
		Store:    redisClient,
		Metrics:  metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
		Recorder: recorder,
	})
	requireResource(ctx, logg, "run finalizer", err)

	service, err := cron.NewSweeper(cron.SweeperParams{
		Config:     cfg.Sweeper,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     logg,
		Jobs:       jobRepo,
		Dispatcher: dispatcher,
		Abandoner:  finalizer,
		LockStore:  redisClient,
		LockKey:    redisClient.CronLockKey("stale-runs"),
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	requireResource(ctx, logg, "stale runs sweeper", err)

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
