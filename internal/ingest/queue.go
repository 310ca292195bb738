package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/metrics"
)

// ErrQueueClosed is returned by Dispatch once Shutdown started.
var ErrQueueClosed = errors.New("ingest queue is shutting down")

// JobRunner executes one extraction job.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// Queue is a fixed pool of workers draining a bounded channel of jobs.
type Queue struct {
	runner  JobRunner
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
	workers int

	ch     chan Task
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func WithQueueMetrics(m *metrics.PipelineMetrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

// NewQueue starts the workers immediately.
func NewQueue(runner JobRunner, logg *logger.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		runner:  runner,
		logg:    logg,
		workers: 4,
		ch:      make(chan Task, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *Queue) work(workerID int) {
	defer q.wg.Done()
	ctx := q.logg.WithField(q.ctx, "queue_worker", workerID)
	q.logg.Debug(ctx, "ingest.queue.worker_started")

	for task := range q.ch {
		q.metrics.SetQueueDepth(len(q.ch))
		taskCtx := q.logg.WithJobID(ctx, task.JobID.String())
		if err := q.runner.Run(taskCtx, task.JobID); err != nil {
			q.logg.Error(taskCtx, "ingest.queue.run_failed", err)
		}
	}

	q.logg.Debug(ctx, "ingest.queue.worker_stopped")
}

// Dispatch enqueues task. It blocks while the queue is full until ctx ends.
func (q *Queue) Dispatch(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- task:
	default:
		q.logg.Warn(q.logg.WithJobID(ctx, task.JobID.String()), "ingest.queue.full")
		select {
		case q.ch <- task:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.SetQueueDepth(len(q.ch))
	return nil
}

// Shutdown stops accepting work and waits for queued jobs to drain. When ctx ends
// first, in-flight runs are canceled and left for the sweeper.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		q.cancel()
		q.logg.Info(ctx, "ingest.queue.drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logg.Warn(ctx, "ingest.queue.shutdown_interrupted")
		return ctx.Err()
	}
}
