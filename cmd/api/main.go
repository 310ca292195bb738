package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/testhub-backend/api/controllers"
	"github.com/angelmondragon/testhub-backend/api/routes"
	"github.com/angelmondragon/testhub-backend/internal/cron"
	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/internal/jobs"
	"github.com/angelmondragon/testhub-backend/internal/pages"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/internal/pipeline"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/db"
	"github.com/angelmondragon/testhub-backend/pkg/instance"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
	"github.com/angelmondragon/testhub-backend/pkg/migrate"
	"github.com/angelmondragon/testhub-backend/pkg/pubsub"
	"github.com/angelmondragon/testhub-backend/pkg/redis"
)

const serviceKind = "api"

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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"addr":        addr,
		"dispatch":    cfg.Pipeline.Dispatch,
	})

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

	registerer := prometheus.DefaultRegisterer
	pdfRepo := pdfs.NewRepository(dbClient.DB())
	jobRepo := jobs.NewRepository(dbClient.DB())

	pdfService, err := pdfs.NewService(pdfRepo, jobRepo)
	requireResource(ctx, logg, "pdf service", err)
	pageService, err := pages.NewService(pages.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "page service", err)
	questionService, err := questions.NewService(questions.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "question service", err)

	ready := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	coordinatorParams := ingest.CoordinatorParams{
		Logger:    logg,
		TX:        dbClient,
		PDFs:      pdfRepo,
		Jobs:      jobRepo,
		Store:     redisClient,
		MaxBytes:  cfg.Upload.MaxBytes(),
		CancelTTL: cfg.Pipeline.RunTimeout,
	}

	var (
		queue   *ingest.Queue
		sweeper *cron.Service
	)
	switch cfg.Pipeline.Dispatch {
	case config.DispatchPubSub:
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		dispatcher, err := ingest.NewPubSubDispatcher(pubsubClient.ExtractionPublisher())
		requireResource(ctx, logg, "pubsub dispatcher", err)
		coordinatorParams.Dispatcher = dispatcher
		ready["pubsub"] = pubsubClient
	default:
		// Local dispatch runs extraction in this process, so the sweeper lives here too.
		p, err := pipeline.Build(ctx, pipeline.Params{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient.DB(),
			Store:      redisClient,
			Registerer: registerer,
		})
		requireResource(ctx, logg, "extraction pipeline", err)
		defer func() {
			if err := p.Close(); err != nil {
				logg.Error(context.Background(), "error closing pipeline", err)
			}
		}()
		queue = p.NewQueue(cfg.Pipeline, logg)
		coordinatorParams.Dispatcher = queue
		coordinatorParams.Canceler = p.Runner

		sweeper, err = cron.NewSweeper(cron.SweeperParams{
			Config:     cfg.Sweeper,
			RunTimeout: cfg.Pipeline.RunTimeout,
			Logger:     logg,
			Jobs:       p.Jobs,
			Dispatcher: queue,
			Abandoner:  p.Runner,
			LockStore:  redisClient,
			LockKey:    redisClient.CronLockKey("stale-runs"),
			Metrics:    metrics.NewCronJobMetrics(registerer),
		})
		requireResource(ctx, logg, "stale runs sweeper", err)
	}

	coordinator, err := ingest.NewCoordinator(coordinatorParams)
	requireResource(ctx, logg, "ingest coordinator", err)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Ingest:      coordinator,
			PDFs:        pdfService,
			Pages:       pageService,
			Questions:   questionService,
			Ready:       ready,
			HTTPMetrics: metrics.NewHTTPMetrics(registerer),
			Gatherer:    prometheus.DefaultGatherer,
		}),
	}

	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if sweeper != nil {
		group.Go(func() error {
			if err := sweeper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stale runs sweeper: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Pipeline.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if queue != nil {
			if qerr := queue.Shutdown(shutdownCtx); qerr != nil {
				err = errors.Join(err, fmt.Errorf("queue shutdown: %w", qerr))
			}
		}
		return err
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
