package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/store"
)

// ApproveScript approves a draft script.
func (p *Pipeline) ApproveScript(ctx context.Context, itemID uint) error {
	if err := p.Store.ApproveScript(ctx, itemID); err != nil {
		return notEligible(err, itemID)
	}
	p.Logger.Info("script approved", "item_id", itemID)
	return nil
}

// RejectScript clears a draft script and returns the item to ready so the
// next tick writes a new one.
func (p *Pipeline) RejectScript(ctx context.Context, itemID uint) error {
	if err := p.Store.RejectScript(ctx, itemID); err != nil {
		return notEligible(err, itemID)
	}
	p.Logger.Info("script rejected", "item_id", itemID)
	return nil
}

// GenerateScript runs the script stage for one ready item on demand.
func (p *Pipeline) GenerateScript(ctx context.Context, itemID uint) error {
	item, err := p.Store.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != models.ItemStatusReady || item.Script != nil {
		return fmt.Errorf("item %d is %s: %w", itemID, item.Status, ErrNotEligible)
	}
	return p.writeScript(ctx, &item.Plan, item)
}

// GenerateItemVideo runs video generation for an approved item. It is the
// explicit user action and the background task behind the tick's dispatch.
func (p *Pipeline) GenerateItemVideo(ctx context.Context, itemID uint) error {
	item, err := p.Store.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != models.ItemStatusApproved {
		return fmt.Errorf("item %d is %s: %w", itemID, item.Status, ErrNotEligible)
	}
	return p.generate(ctx, &item.Plan, item)
}

// RetryItem returns a failed item to the stage it failed in and clears the
// error. A failed video is reset so that a new provider task may be created.
func (p *Pipeline) RetryItem(ctx context.Context, itemID uint) (models.ItemStatus, error) {
	item, err := p.Store.FindItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.Status != models.ItemStatusFailed {
		return "", fmt.Errorf("item %d is %s: %w", itemID, item.Status, ErrNotEligible)
	}

	to, err := p.retryTarget(ctx, item)
	if err != nil {
		return "", err
	}
	if err := p.Store.TransitionItem(ctx, itemID, models.ItemStatusFailed, to, map[string]any{"error_message": ""}); err != nil {
		return "", notEligible(err, itemID)
	}
	p.Logger.Info("item retried", "item_id", itemID, "status", to)
	return to, nil
}

func (p *Pipeline) retryTarget(ctx context.Context, item *models.PlanItem) (models.ItemStatus, error) {
	if item.VideoID != nil {
		video, err := p.Store.FindVideo(ctx, *item.VideoID)
		if err != nil {
			return "", err
		}
		switch video.Status {
		case models.VideoStatusCompleted:
			return models.ItemStatusCompleted, nil
		case models.VideoStatusGenerating:
			return models.ItemStatusGenerating, nil
		case models.VideoStatusFailed:
			if err := p.Store.ResetVideo(ctx, video.ID); err != nil && !conflict(err) {
				return "", err
			}
		}
		return models.ItemStatusApproved, nil
	}

	switch {
	case item.Script != nil:
		return models.ItemStatusApproved, nil
	case item.Research != nil:
		return models.ItemStatusReady, nil
	case !item.Plan.AutoResearch && strings.TrimSpace(item.Topic) != "":
		return models.ItemStatusReady, nil
	default:
		return models.ItemStatusPending, nil
	}
}

// HandleTaskUpdate re-checks a provider task named by a callback and moves
// the owning item along with its video.
func (p *Pipeline) HandleTaskUpdate(ctx context.Context, provider, taskID string) error {
	video, err := p.Store.FindVideoByTask(ctx, provider, taskID)
	if err != nil {
		return err
	}
	return p.checkVideo(ctx, video)
}

// Reconcile re-checks generating videos that have gone quiet, then syncs
// their items. It returns how many videos were checked.
func (p *Pipeline) Reconcile(ctx context.Context) (int, error) {
	videos, err := p.Store.StaleGeneratingVideos(ctx, p.now().Add(-p.cfg.StaleAfter), p.cfg.ReconcileBatch)
	if err != nil {
		return 0, err
	}

	res := fanOut(ctx, p.cfg.Concurrency, videos, p.checkVideo)
	p.Logger.Info("reconciliation finished", "checked", len(videos), "errors", res.Failed)
	return len(videos), nil
}

func (p *Pipeline) checkVideo(ctx context.Context, video *models.Video) error {
	status, err := p.Videos.CheckTaskStatus(ctx, video.ID, video.ProviderTaskID, video.Provider)
	if err != nil {
		p.Logger.Warn("task status check failed", "video_id", video.ID, "error", err)
		return err
	}
	if status != models.VideoStatusCompleted && status != models.VideoStatusFailed {
		return nil
	}

	item, err := p.Store.ItemForVideo(ctx, video.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fresh, err := p.Store.FindVideo(ctx, video.ID)
	if err != nil {
		return err
	}
	return p.applyVideoStatus(ctx, item.ID, fresh)
}
