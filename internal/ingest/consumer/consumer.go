package consumer

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

// Service consumes extraction tasks from Pub/Sub and runs them inline.
type Service struct {
	subscription *gcppubsub.Subscriber
	runner       ingest.JobRunner
	logg         *logger.Logger
}

// NewService creates a consumer bound to the extraction subscription.
func NewService(subscription *gcppubsub.Subscriber, runner ingest.JobRunner, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("extraction subscription is required")
	}
	if runner == nil {
		return nil, errors.New("job runner is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, runner: runner, logg: logg}, nil
}

type processResult struct {
	nack bool
}

// Run receives messages until ctx is canceled. Concurrency is bounded by the
// subscription's MaxOutstandingMessages.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	task, err := ingest.DecodeTask(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "ingest.consumer.invalid_task")
		return processResult{}
	}

	if err := s.runner.Run(logCtx, task.JobID); err != nil {
		s.logg.Error(logCtx, "ingest.consumer.run_failed", err)
		return processResult{nack: true}
	}
	return processResult{}
}
