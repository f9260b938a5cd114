package streams

import (
	"context"
	"errors"
	"log/slog"

	"github.com/reelcast/autopilot/internal/store"
)

// TaskUpdater re-checks a provider task and syncs the records that own it.
type TaskUpdater interface {
	HandleTaskUpdate(ctx context.Context, provider, taskID string) error
}

// HandleTaskCallback returns a handler that forwards callbacks to updater.
// Callbacks for unknown tasks are acknowledged: they can never resolve.
func HandleTaskCallback(updater TaskUpdater, logger *slog.Logger) func(context.Context, TaskCallback) error {
	return func(ctx context.Context, cb TaskCallback) error {
		err := updater.HandleTaskUpdate(ctx, cb.Provider, cb.TaskID)
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("Callback for unknown task",
				"callback_id", cb.CallbackID,
				"provider", cb.Provider,
				"task_id", cb.TaskID,
			)
			return nil
		}
		if err != nil {
			return err
		}

		logger.Info("Provider callback applied",
			"callback_id", cb.CallbackID,
			"provider", cb.Provider,
			"task_id", cb.TaskID,
		)
		return nil
	}
}
