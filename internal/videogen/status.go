package videogen

import (
	"context"
	"fmt"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/providers"
)

// CheckTaskStatus re-fetches a provider task outside the generation flow and
// applies a terminal result to the video. It returns the video's status
// afterwards.
//
// A not-found answer while the video is generating is treated as the vendor
// lagging behind: the video stays generating.
//
// A failed task on a video touched within the live window is left alone. The
// running attempt plan owns that failure and may still fall back to another
// model; reconciliation applies it once the heartbeat stops.
func (o *Orchestrator) CheckTaskStatus(ctx context.Context, videoID uint, taskID, providerName string) (models.VideoStatus, error) {
	video, err := o.store.FindVideo(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to load video %d: %w", videoID, err)
	}
	if video.Status == models.VideoStatusCompleted || video.Status == models.VideoStatusFailed {
		return video.Status, nil
	}
	if taskID == "" {
		taskID = video.ProviderTaskID
	}
	if providerName == "" {
		providerName = video.Provider
	}
	if taskID == "" || taskID != video.ProviderTaskID {
		o.logger.Debug("ignoring status for stale task", "video_id", videoID, "task_id", taskID)
		return video.Status, nil
	}

	log := o.logger.With("video_id", videoID, "provider", providerName, "task_id", taskID)

	p, err := o.providers.Get(providerName)
	if err != nil {
		return video.Status, err
	}

	detail, err := p.GetTaskStatus(ctx, taskID)
	if err != nil {
		if providers.IsNotFound(err) {
			log.Info("provider task not found yet, keeping status")
			return video.Status, nil
		}
		return video.Status, err
	}

	switch detail.State {
	case providers.StateCompleted:
		url, err := p.ResultURL(detail)
		if err != nil {
			if markErr := o.store.MarkFailed(ctx, videoID, err.Error()); markErr != nil {
				return video.Status, markErr
			}
			log.Warn("completed task has no result", "error", err)
			return models.VideoStatusFailed, nil
		}
		if err := o.store.MarkCompleted(ctx, videoID, url); err != nil {
			return video.Status, err
		}
		log.Info("video completed via status check", "url", url)
		return models.VideoStatusCompleted, nil

	case providers.StateFailed:
		msg := detail.Error
		if msg == "" {
			msg = "task reported failure"
		}
		if o.liveRun(video) {
			log.Info("task failed while an attempt plan is running, leaving it to the run", "reason", msg)
			return video.Status, nil
		}
		if err := o.store.MarkFailed(ctx, videoID, fmt.Sprintf("%s: %s", providerName, msg)); err != nil {
			return video.Status, err
		}
		log.Warn("video failed via status check", "reason", msg)
		return models.VideoStatusFailed, nil

	default:
		return video.Status, nil
	}
}

func (o *Orchestrator) liveRun(video *models.Video) bool {
	return video.Status == models.VideoStatusGenerating && o.now().Sub(video.UpdatedAt) < o.cfg.LiveWindow
}
