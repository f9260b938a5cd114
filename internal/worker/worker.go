package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/reelcast/autopilot/internal/config"
	"github.com/reelcast/autopilot/internal/pipeline"
	"github.com/reelcast/autopilot/internal/store"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

// Implement asynq.Logger interface methods
func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	srv, mux, err := newServer(cfg, p, logger)
	if err != nil {
		return err
	}

	// Note: Scheduler is started separately in main.go worker mode
	// and deferred there for shutdown coordination.
	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) (stop func(), err error) {
	srv, mux, err := newServer(cfg, p, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	logger.Info("Worker starting", "concurrency", concurrency)
	return srv, NewServeMux(p, logger), nil
}

// NewServeMux routes every task type to its pipeline handler.
func NewServeMux(p *pipeline.Pipeline, logger *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPipelineTick, handleTick(logger, p))
	mux.HandleFunc(TaskReconcile, handleReconcile(logger, p))
	mux.HandleFunc(TaskGenerateVideo, handleGenerateVideo(logger, p))
	return mux
}

func handleTick(logger *slog.Logger, p *pipeline.Pipeline) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		report, err := p.Tick(ctx)
		if err != nil {
			return fmt.Errorf("tick failed: %w", err)
		}
		logger.Debug("Tick task done", "run_id", report.RunID, "due_plans", report.DuePlans)
		return nil
	}
}

func handleReconcile(logger *slog.Logger, p *pipeline.Pipeline) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		checked, err := p.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		logger.Debug("Reconcile task done", "checked", checked)
		return nil
	}
}

// handleGenerateVideo runs the orchestrator for one approved item. Items that
// moved on or disappeared are not retried.
func handleGenerateVideo(logger *slog.Logger, p *pipeline.Pipeline) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload GenerateVideoPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing item:generate_video task", "item_id", payload.ItemID)

		err := p.GenerateItemVideo(ctx, payload.ItemID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, pipeline.ErrNotEligible), errors.Is(err, store.ErrNotFound):
			logger.Info("Skipping video task", "item_id", payload.ItemID, "reason", err.Error())
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			return fmt.Errorf("video generation for item %d failed: %w", payload.ItemID, err)
		}
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
