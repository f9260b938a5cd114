package providers

import (
	"context"
	"fmt"
	"time"
)

// Poll defaults: ten second interval for up to twenty minutes.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 120
)

// PollOptions bounds a poll loop.
type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
	// OnProgress is called after every successful status fetch.
	OnProgress func(attempt int, detail *TaskDetail)
}

// PollUntilComplete waits for a task to reach a terminal state.
//
// A completed task is returned as-is. A failed task stops polling immediately
// with a terminal error. Not-found and transient fetch errors are tolerated
// until the attempt budget runs out, which yields an error wrapping ErrPollTimeout.
func PollUntilComplete(ctx context.Context, p VideoProvider, taskID string, opts PollOptions) (*TaskDetail, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollMaxAttempts
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := wait(ctx, opts.Interval); err != nil {
			return nil, err
		}

		detail, err := p.GetTaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			switch KindOf(err) {
			case KindNotFound, KindTransient:
				lastErr = err
				continue
			default:
				return nil, err
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(attempt, detail)
		}

		switch detail.State {
		case StateCompleted:
			return detail, nil
		case StateFailed:
			msg := detail.Error
			if msg == "" {
				msg = "task reported failure"
			}
			return detail, &Error{Kind: KindTerminal, Provider: p.Name(), Message: msg}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%s task %s: %w (last error: %v)", p.Name(), taskID, ErrPollTimeout, lastErr)
	}
	return nil, fmt.Errorf("%s task %s: %w after %d attempts", p.Name(), taskID, ErrPollTimeout, opts.MaxAttempts)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
