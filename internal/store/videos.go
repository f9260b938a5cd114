package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/videogen"
	"gorm.io/gorm"
)

// CreateVideo inserts a pending video.
func (s *Store) CreateVideo(ctx context.Context, video *models.Video) error {
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// FindVideo loads a video by id.
func (s *Store) FindVideo(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := s.db.WithContext(ctx).First(&video, id).Error; err != nil {
		return nil, notFound(err, "video", id)
	}
	return &video, nil
}

// FindVideoByTask looks a video up by its provider task.
func (s *Store) FindVideoByTask(ctx context.Context, provider, taskID string) (*models.Video, error) {
	var video models.Video
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_task_id = ?", provider, taskID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("video for %s task %s: %w", provider, taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video for %s task %s: %w", provider, taskID, err)
	}
	return &video, nil
}

// RecordTask stores the provider task on a video and marks it generating.
// It only succeeds while the stored task id still equals previousTaskID.
func (s *Store) RecordTask(ctx context.Context, videoID uint, previousTaskID string, task videogen.TaskRef) error {
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND provider_task_id = ? AND status IN ?", videoID, previousTaskID,
			[]models.VideoStatus{models.VideoStatusPending, models.VideoStatusGenerating}).
		Updates(map[string]any{
			"provider_task_id": task.TaskID,
			"provider":         task.Provider,
			"model":            task.Model,
			"status":           models.VideoStatusGenerating,
			"error_message":    "",
		})
	return expectOne(result, "video", videoID)
}

// MarkCompleted stores the result URL.
func (s *Store) MarkCompleted(ctx context.Context, videoID uint, videoURL string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", videoID).
		Updates(map[string]any{
			"status":        models.VideoStatusCompleted,
			"video_url":     videoURL,
			"error_message": "",
			"completed_at":  now,
		})
	return expectOne(result, "video", videoID)
}

// MarkFailed records a failure unless the video already completed.
func (s *Store) MarkFailed(ctx context.Context, videoID uint, message string) error {
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status <> ?", videoID, models.VideoStatusCompleted).
		Updates(map[string]any{
			"status":        models.VideoStatusFailed,
			"error_message": message,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update video %d: %w", videoID, result.Error)
	}
	return nil
}

// TouchVideo bumps updated_at on a generating video. Other statuses are left
// alone so a late heartbeat cannot revive a finished video.
func (s *Store) TouchVideo(ctx context.Context, videoID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status = ?", videoID, models.VideoStatusGenerating).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch video %d: %w", videoID, result.Error)
	}
	return nil
}

// ResetVideo returns a failed video to pending and forgets its provider task,
// allowing a fresh generation run.
func (s *Store) ResetVideo(ctx context.Context, videoID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status = ?", videoID, models.VideoStatusFailed).
		Updates(map[string]any{
			"status":           models.VideoStatusPending,
			"provider_task_id": "",
			"provider":         "",
			"model":            "",
			"video_url":        "",
			"error_message":    "",
		})
	return expectOne(result, "video", videoID)
}

// StaleGeneratingVideos returns generating videos with a task that have not
// been touched since before.
func (s *Store) StaleGeneratingVideos(ctx context.Context, before time.Time, limit int) ([]models.Video, error) {
	var videos []models.Video
	err := s.db.WithContext(ctx).
		Where("status = ? AND provider_task_id <> '' AND updated_at < ?", models.VideoStatusGenerating, before).
		Order("updated_at").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list generating videos: %w", err)
	}
	return videos, nil
}

var _ videogen.VideoStore = (*Store)(nil)
