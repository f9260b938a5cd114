package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskPipelineTick  = "pipeline:tick"
	TaskReconcile     = "pipeline:reconcile"
	TaskGenerateVideo = "item:generate_video"
)

// videoTaskTimeout covers the full attempt plan: four attempts of up to
// twenty minutes of polling each.
const videoTaskTimeout = 90 * time.Minute

// GenerateVideoPayload identifies the item a video task works on.
type GenerateVideoPayload struct {
	ItemID uint `json:"item_id"`
}

// Enqueuer submits background tasks.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects an asynq client to redisURL.
func NewEnqueuer(redisURL string) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt)}, nil
}

// Close closes the asynq client connection gracefully.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// EnqueueGenerateVideo enqueues video generation for an item. A task already
// queued for the item is not an error.
func (e *Enqueuer) EnqueueGenerateVideo(ctx context.Context, itemID uint) error {
	task, err := NewGenerateVideoTask(itemID)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NewGenerateVideoTask builds the video task for an item. Failures are
// recorded on the item and retried through the retry action, so the task
// itself is never retried by the queue.
func NewGenerateVideoTask(itemID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(GenerateVideoPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskGenerateVideo,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(videoTaskTimeout),
		asynq.Retention(24*time.Hour),
		asynq.Unique(videoTaskTimeout),
	), nil
}

func newTickTask() *asynq.Task {
	return asynq.NewTask(
		TaskPipelineTick,
		nil,
		asynq.MaxRetry(0), // the next tick picks up where this one stopped
		asynq.Timeout(30*time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(30*time.Minute),
	)
}

func newReconcileTask() *asynq.Task {
	return asynq.NewTask(
		TaskReconcile,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(10*time.Minute),
	)
}
