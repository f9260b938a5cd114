package worker

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/reelcast/autopilot/internal/config"
)

// StartScheduler creates and starts an Asynq Scheduler for the periodic
// pipeline tick and reconciliation. Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Triggers are evaluated in each plan's own timezone; the scheduler only
	// sets the cadence.
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	tickID, err := scheduler.Register(cfg.TickSchedule, newTickTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register tick schedule: %w", err)
	}
	reconcileID, err := scheduler.Register(cfg.ReconcileSchedule, newReconcileTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register reconcile schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"tick_schedule", cfg.TickSchedule,
		"tick_entry_id", tickID,
		"reconcile_schedule", cfg.ReconcileSchedule,
		"reconcile_entry_id", reconcileID,
	)

	return func() { scheduler.Shutdown() }, nil
}
