package cron

import (
	"fmt"
	"time"

	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// SweeperParams wire the stale-runs sweeper for a binary.
type SweeperParams struct {
	Config     config.SweeperConfig
	RunTimeout time.Duration
	Logger     *logger.Logger
	Jobs       staleJobStore
	Dispatcher ingest.Dispatcher
	Abandoner  abandoner
	LockStore  lockStore
	LockKey    string
	Metrics    *metrics.CronJobMetrics
}

// NewSweeper builds a cron Service running the stale-runs job under a distributed lock.
func NewSweeper(params SweeperParams) (*Service, error) {
	job, err := NewStaleRunsJob(StaleRunsJobParams{
		Logger:       params.Logger,
		Jobs:         params.Jobs,
		Dispatcher:   params.Dispatcher,
		Abandoner:    params.Abandoner,
		RequeueAfter: params.Config.RequeueAfter,
		RunTimeout:   params.RunTimeout,
		RunningGrace: params.Config.RunningGrace,
		BatchSize:    params.Config.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("stale runs job: %w", err)
	}
	registry, err := NewRegistry(job)
	if err != nil {
		return nil, err
	}
	lock, err := NewRedisLock(params.LockStore, params.LockKey, params.Config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	return NewService(ServiceParams{
		Logger:   params.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  params.Metrics,
		Interval: params.Config.Interval,
	})
}
