package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// Task identifies a job handed to a worker.
type Task struct {
	JobID uuid.UUID `json:"job_id"`
	PDFID uuid.UUID `json:"pdf_id"`
}

// Dispatcher hands a queued job to whatever executes runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

// PubSubDispatcher publishes jobs for cmd/worker replicas.
type PubSubDispatcher struct {
	pub publisher
}

// NewPubSubDispatcher wraps the extraction topic publisher.
func NewPubSubDispatcher(pub *gcppubsub.Publisher) (*PubSubDispatcher, error) {
	if pub == nil {
		return nil, errors.New("extraction publisher required")
	}
	return &PubSubDispatcher{pub: gcpPublisher{inner: pub}}, nil
}

func (d *PubSubDispatcher) Dispatch(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id": task.JobID.String(),
			"pdf_id": task.PDFID.String(),
		},
	}
	if _, err := d.pub.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// DecodeTask reads a task published by PubSubDispatcher, falling back to attributes.
func DecodeTask(data []byte, attributes map[string]string) (Task, error) {
	var task Task
	if len(data) > 0 {
		if err := json.Unmarshal(data, &task); err != nil {
			return Task{}, fmt.Errorf("decode task: %w", err)
		}
	}
	if task.JobID == uuid.Nil {
		id, err := uuid.Parse(attributes["job_id"])
		if err != nil {
			return Task{}, fmt.Errorf("job_id: %w", err)
		}
		task.JobID = id
	}
	if task.PDFID == uuid.Nil {
		if id, err := uuid.Parse(attributes["pdf_id"]); err == nil {
			task.PDFID = id
		}
	}
	return task, nil
}
