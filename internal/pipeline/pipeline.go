// Package pipeline advances plan items through their lifecycle:
//
//	pending -> ready -> draft|approved -> generating -> completed -> scheduled|posted
//
// with failed reachable from any stage and draft -> ready on rejection.
// A tick selects due plans, runs each stage over the items eligible for it
// and persists every step with a conditional write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/modes"
	"github.com/reelcast/autopilot/internal/providers/uploadpost"
	"github.com/reelcast/autopilot/internal/schedule"
	"github.com/reelcast/autopilot/internal/scriptgen"
	"github.com/reelcast/autopilot/internal/store"
	"github.com/reelcast/autopilot/internal/videogen"
	"golang.org/x/sync/errgroup"
)

// ErrNotEligible is returned by manual actions on items in the wrong state.
var ErrNotEligible = errors.New("item is not eligible for this action")

// ScriptWriter produces research and scripts.
type ScriptWriter interface {
	Generate(ctx context.Context, fields scriptgen.Fields) (*scriptgen.Result, error)
	Research(ctx context.Context, niche, topic string) (*models.Research, error)
}

// VideoGenerator runs and re-checks provider generation.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, video *models.Video, opts videogen.Options) error
	CheckTaskStatus(ctx context.Context, videoID uint, taskID, provider string) (models.VideoStatus, error)
}

// Publisher distributes finished videos.
type Publisher interface {
	Publish(ctx context.Context, req uploadpost.PostRequest) (*uploadpost.PostResult, error)
}

// Lease grants short exclusive ownership of a key across processes.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Dispatcher hands video generation for an item to background execution.
type Dispatcher func(ctx context.Context, itemID uint) error

// Config tunes a Pipeline.
type Config struct {
	// Concurrency bounds per-stage fan-out.
	Concurrency int
	// StaleAfter is how long a generating video may go untouched before
	// reconciliation re-checks it with the provider. Running polls touch the
	// video, so this must stay well above the poll interval.
	StaleAfter time.Duration
	// ReconcileBatch limits videos re-checked per reconciliation run.
	ReconcileBatch int
}

// Deps are the collaborators of a Pipeline. Lease and Dispatch are optional.
type Deps struct {
	Store     *store.Store
	Evaluator *schedule.Evaluator
	Scripts   ScriptWriter
	Videos    VideoGenerator
	Modes     *modes.Registry
	Publisher Publisher
	Lease     Lease
	// Dispatch runs video generation outside the tick. When nil the tick
	// generates inline.
	Dispatch Dispatcher
	Logger   *slog.Logger
}

// Pipeline is the plan item state machine driver.
type Pipeline struct {
	Deps
	cfg Config
	now func() time.Time
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = videogen.DefaultLiveWindow
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 50
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{Deps: deps, cfg: cfg, now: time.Now}
}

// StageResult counts the outcome of one stage.
type StageResult struct {
	Succeeded int
	Failed    int
}

// TickReport summarizes a tick.
type TickReport struct {
	RunID      string
	Plans      int
	DuePlans   int
	Created    int
	Research   StageResult
	Scripts    StageResult
	Videos     StageResult
	Synced     StageResult
	Distribute StageResult
}

// fanOut runs fn over items with bounded concurrency. Every item runs to
// completion regardless of sibling failures.
func fanOut[T any](ctx context.Context, limit int, items []T, fn func(context.Context, *T) error) StageResult {
	var ok, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range items {
		item := &items[i]
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				failed.Add(1)
			} else {
				ok.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return StageResult{Succeeded: int(ok.Load()), Failed: int(failed.Load())}
}

// conflict reports whether err means another worker already moved the record.
func conflict(err error) bool {
	return errors.Is(err, store.ErrTransitionConflict)
}

func notEligible(err error, itemID uint) error {
	if conflict(err) {
		return fmt.Errorf("item %d: %w", itemID, ErrNotEligible)
	}
	return err
}
