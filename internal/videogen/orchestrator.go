// Package videogen drives video generation across providers: it guards
// against duplicate provider tasks, walks the attempt plan and polls each
// task to completion.
package videogen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/modes"
	"github.com/reelcast/autopilot/internal/providers"
)

// ErrNoAttempts is returned when an attempt plan ends without any recorded error.
var ErrNoAttempts = errors.New("no generation attempts were made")

// TaskRef identifies a provider task.
type TaskRef struct {
	Provider string
	Model    string
	TaskID   string
}

// VideoStore persists orchestrator progress on a Video.
type VideoStore interface {
	FindVideo(ctx context.Context, id uint) (*models.Video, error)
	// RecordTask stores the task and flips the video to generating. It must
	// fail when the stored task id no longer equals previousTaskID.
	RecordTask(ctx context.Context, videoID uint, previousTaskID string, task TaskRef) error
	MarkCompleted(ctx context.Context, videoID uint, videoURL string) error
	MarkFailed(ctx context.Context, videoID uint, message string) error
	// TouchVideo bumps updated_at on a generating video. Pollers call it as
	// a heartbeat so reconciliation can tell live runs from abandoned ones.
	TouchVideo(ctx context.Context, videoID uint) error
}

// Options tune one generation run.
type Options struct {
	AspectRatio    string
	CallbackURL    string
	GenerationMode string
	Settings       map[string]any
}

// Config is fixed at construction.
type Config struct {
	AttemptsPerModel int
	Stable           modes.Target
	PollInterval     int // seconds
	PollMaxAttempts  int
	// CallbackURL returns the webhook for a provider, or "".
	CallbackURL func(provider string) string
	// LiveWindow is how recently a generating video must have been touched
	// for CheckTaskStatus to treat it as owned by a running attempt plan.
	LiveWindow time.Duration
}

// DefaultLiveWindow is used when Config.LiveWindow is not set.
const DefaultLiveWindow = 3 * time.Minute

// Orchestrator generates videos.
type Orchestrator struct {
	providers providers.Registry
	modes     *modes.Registry
	store     VideoStore
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Orchestrator.
func New(registry providers.Registry, modeRegistry *modes.Registry, store VideoStore, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.AttemptsPerModel <= 0 {
		cfg.AttemptsPerModel = DefaultAttemptsPerModel
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = providers.DefaultPollMaxAttempts
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	if cfg.LiveWindow <= 0 {
		cfg.LiveWindow = DefaultLiveWindow
	}
	return &Orchestrator{
		providers: registry,
		modes:     modeRegistry,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) pollOptions(ctx context.Context, log *slog.Logger, videoID uint) providers.PollOptions {
	return providers.PollOptions{
		MaxAttempts: o.cfg.PollMaxAttempts,
		Interval:    time.Duration(o.cfg.PollInterval) * time.Second,
		OnProgress: func(attempt int, detail *providers.TaskDetail) {
			log.Debug("task progress", "poll", attempt, "state", detail.State, "raw_state", detail.RawState)
			if err := o.store.TouchVideo(ctx, videoID); err != nil {
				log.Warn("failed to record poll heartbeat", "error", err)
			}
		},
	}
}

// GenerateVideo runs the attempt plan for video and updates it in place.
//
// A video that already has a provider task is returned untouched. When every
// attempt fails the video is marked failed and the last error is returned.
// Context cancellation returns immediately and leaves the recorded task for
// reconciliation to pick up.
func (o *Orchestrator) GenerateVideo(ctx context.Context, video *models.Video, opts Options) error {
	if video.HasProviderTask() {
		o.logger.Debug("video already has a provider task", "video_id", video.ID, "task_id", video.ProviderTaskID)
		return nil
	}

	modeName := opts.GenerationMode
	if modeName == "" {
		modeName = video.GenerationMode
	}
	mode, err := o.modes.Resolve(modeName)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	if err := mode.ValidateSettings(opts.Settings); err != nil {
		return o.fail(ctx, video, err)
	}

	duration := video.DurationSeconds
	if duration <= 0 {
		duration = mode.DurationSeconds
	}
	aspect := opts.AspectRatio
	if aspect == "" {
		aspect = video.AspectRatio
	}
	prompt := BuildPrompt(video.Style, video.Topic, video.Script, duration)
	plan := BuildAttemptPlan(mode.Primary(opts.Settings), o.cfg.Stable, o.cfg.AttemptsPerModel)

	var lastErr error
	skip := make(map[string]bool)
	for i, target := range plan {
		log := o.logger.With("video_id", video.ID, "provider", target.Provider, "model", target.Model, "attempt", i+1)
		if skip[target.Provider] {
			continue
		}

		url, err := o.attempt(ctx, log, video, target, providers.CreateTaskRequest{
			Model:           target.Model,
			Prompt:          prompt,
			Script:          video.Script,
			AspectRatio:     aspect,
			DurationSeconds: duration,
			RemoveWatermark: mode.RemoveWatermark,
			CallbackURL:     o.callbackURL(opts, target.Provider),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var recordErr *recordTaskError
			if errors.As(err, &recordErr) {
				return err
			}
			if providers.IsConfiguration(err) {
				skip[target.Provider] = true
			}
			log.Warn("generation attempt failed", "error", err)
			lastErr = err
			continue
		}

		if err := o.store.MarkCompleted(ctx, video.ID, url); err != nil {
			return fmt.Errorf("failed to mark video %d completed: %w", video.ID, err)
		}
		video.Status = models.VideoStatusCompleted
		video.VideoURL = url
		video.ErrorMessage = ""
		log.Info("video completed", "url", url)
		return nil
	}

	if lastErr == nil {
		lastErr = ErrNoAttempts
	}
	return o.fail(ctx, video, lastErr)
}

type recordTaskError struct{ err error }

func (e *recordTaskError) Error() string { return e.err.Error() }
func (e *recordTaskError) Unwrap() error { return e.err }

// attempt creates one task, records it and polls it to a result URL.
func (o *Orchestrator) attempt(ctx context.Context, log *slog.Logger, video *models.Video, target modes.Target, req providers.CreateTaskRequest) (string, error) {
	p, err := o.providers.Get(target.Provider)
	if err != nil {
		return "", err
	}

	taskID, err := p.CreateTask(ctx, req)
	if err != nil {
		return "", err
	}

	ref := TaskRef{Provider: target.Provider, Model: target.Model, TaskID: taskID}
	if err := o.store.RecordTask(ctx, video.ID, video.ProviderTaskID, ref); err != nil {
		log.Error("failed to record provider task", "task_id", taskID, "error", err)
		return "", &recordTaskError{err: fmt.Errorf("failed to record task %s for video %d: %w", taskID, video.ID, err)}
	}
	video.ProviderTaskID = taskID
	video.Provider = target.Provider
	video.Model = target.Model
	video.Status = models.VideoStatusGenerating
	log.Info("provider task created", "task_id", taskID)

	detail, err := providers.PollUntilComplete(ctx, p, taskID, o.pollOptions(ctx, log.With("task_id", taskID), video.ID))
	if err != nil {
		return "", err
	}
	return p.ResultURL(detail)
}

func (o *Orchestrator) fail(ctx context.Context, video *models.Video, cause error) error {
	if err := o.store.MarkFailed(ctx, video.ID, cause.Error()); err != nil {
		o.logger.Error("failed to mark video failed", "video_id", video.ID, "error", err)
	}
	video.Status = models.VideoStatusFailed
	video.ErrorMessage = cause.Error()
	return fmt.Errorf("video %d generation failed: %w", video.ID, cause)
}

func (o *Orchestrator) callbackURL(opts Options, provider string) string {
	if opts.CallbackURL != "" {
		return opts.CallbackURL
	}
	if o.cfg.CallbackURL != nil {
		return o.cfg.CallbackURL(provider)
	}
	return ""
}
