package store

import (
	"context"
	"fmt"

	"github.com/reelcast/autopilot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureItems creates the missing items of plan for date, one per slot up to
// the daily quota. Topics from the plan's queue are assigned round-robin.
// Existing slots are left alone, so repeated calls are harmless.
func (s *Store) EnsureItems(ctx context.Context, plan *models.Plan, date string) (int, error) {
	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.PlanItem{}).Where("plan_id = ?", plan.ID).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to count items for plan %d: %w", plan.ID, err)
	}

	created := 0
	for slot := 0; slot < plan.ItemsPerDayOrDefault(); slot++ {
		item := models.PlanItem{
			PlanID:        plan.ID,
			ScheduledDate: date,
			Slot:          slot,
			Status:        models.ItemStatusPending,
		}
		if n := len(plan.Topics); n > 0 {
			item.Topic = plan.Topics[(int(existing)+slot)%n]
		}

		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
		if result.Error != nil {
			return created, fmt.Errorf("failed to create item for plan %d slot %d: %w", plan.ID, slot, result.Error)
		}
		created += int(result.RowsAffected)
	}
	return created, nil
}

// FindItem loads an item with its plan.
func (s *Store) FindItem(ctx context.Context, id uint) (*models.PlanItem, error) {
	var item models.PlanItem
	if err := s.db.WithContext(ctx).Preload("Plan").First(&item, id).Error; err != nil {
		return nil, notFound(err, "plan item", id)
	}
	return &item, nil
}

func (s *Store) itemsWhere(ctx context.Context, planID uint, query string, args ...any) ([]models.PlanItem, error) {
	var items []models.PlanItem
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Where(query, args...).
		Order("scheduled_date, slot").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query items for plan %d: %w", planID, err)
	}
	return items, nil
}

// ItemsNeedingResearch returns pending items.
func (s *Store) ItemsNeedingResearch(ctx context.Context, planID uint) ([]models.PlanItem, error) {
	return s.itemsWhere(ctx, planID, "status = ?", models.ItemStatusPending)
}

// ItemsNeedingScript returns ready items without a script.
func (s *Store) ItemsNeedingScript(ctx context.Context, planID uint) ([]models.PlanItem, error) {
	return s.itemsWhere(ctx, planID, "status = ? AND script IS NULL", models.ItemStatusReady)
}

// ItemsAwaitingVideo returns approved items. A retried item keeps its reset
// video link, so video_id is not part of the predicate; the generating claim
// is what excludes concurrent callers.
func (s *Store) ItemsAwaitingVideo(ctx context.Context, planID uint) ([]models.PlanItem, error) {
	return s.itemsWhere(ctx, planID, "status = ?", models.ItemStatusApproved)
}

// ItemsGenerating returns items waiting on a linked video.
func (s *Store) ItemsGenerating(ctx context.Context, planID uint) ([]models.PlanItem, error) {
	return s.itemsWhere(ctx, planID, "status = ? AND video_id IS NOT NULL", models.ItemStatusGenerating)
}

// ItemsAwaitingDistribution returns completed items without a scheduled post.
func (s *Store) ItemsAwaitingDistribution(ctx context.Context, planID uint) ([]models.PlanItem, error) {
	return s.itemsWhere(ctx, planID, "status = ? AND scheduled_post_id IS NULL", models.ItemStatusCompleted)
}

// ItemForVideo returns the item linked to a video.
func (s *Store) ItemForVideo(ctx context.Context, videoID uint) (*models.PlanItem, error) {
	var item models.PlanItem
	if err := s.db.WithContext(ctx).Preload("Plan").Where("video_id = ?", videoID).First(&item).Error; err != nil {
		return nil, notFound(err, "item for video", videoID)
	}
	return &item, nil
}

// TransitionItem moves an item from one status to another, applying extra
// column updates in the same statement.
func (s *Store) TransitionItem(ctx context.Context, id uint, from, to models.ItemStatus, fields map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := s.db.WithContext(ctx).Model(&models.PlanItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return expectOne(result, "plan item", id)
}

// FailItem moves an item to failed with the error message attached.
func (s *Store) FailItem(ctx context.Context, id uint, from models.ItemStatus, message string) error {
	return s.TransitionItem(ctx, id, from, models.ItemStatusFailed, map[string]any{"error_message": message})
}

// MarkReady moves a pending item to ready, storing research when given.
func (s *Store) MarkReady(ctx context.Context, id uint, research *models.Research) error {
	fields := map[string]any{"error_message": ""}
	if research != nil {
		encoded, err := research.Encode()
		if err != nil {
			return err
		}
		fields["research"] = encoded
	}
	return s.TransitionItem(ctx, id, models.ItemStatusPending, models.ItemStatusReady, fields)
}

// SaveScript stores a generated script on a ready item without one. The item
// becomes approved when autoApprove is set and draft otherwise.
func (s *Store) SaveScript(ctx context.Context, id uint, script string, autoApprove bool) (models.ItemStatus, error) {
	to, scriptStatus := models.ItemStatusDraft, models.ScriptStatusDraft
	if autoApprove {
		to, scriptStatus = models.ItemStatusApproved, models.ScriptStatusApproved
	}
	result := s.db.WithContext(ctx).Model(&models.PlanItem{}).
		Where("id = ? AND status = ? AND script IS NULL", id, models.ItemStatusReady).
		Updates(map[string]any{
			"status":        to,
			"script":        script,
			"script_status": scriptStatus,
			"error_message": "",
		})
	if err := expectOne(result, "plan item", id); err != nil {
		return "", err
	}
	return to, nil
}

// ApproveScript approves a draft script.
func (s *Store) ApproveScript(ctx context.Context, id uint) error {
	return s.TransitionItem(ctx, id, models.ItemStatusDraft, models.ItemStatusApproved, map[string]any{
		"script_status": models.ScriptStatusApproved,
	})
}

// RejectScript discards a draft script and returns the item to ready.
func (s *Store) RejectScript(ctx context.Context, id uint) error {
	return s.TransitionItem(ctx, id, models.ItemStatusDraft, models.ItemStatusReady, map[string]any{
		"script":        gorm.Expr("NULL"),
		"script_status": models.ScriptStatusRejected,
	})
}

// ClaimForGeneration moves an approved item to generating. Only one caller
// can win the claim.
func (s *Store) ClaimForGeneration(ctx context.Context, id uint) error {
	return s.TransitionItem(ctx, id, models.ItemStatusApproved, models.ItemStatusGenerating, nil)
}

// AttachVideo links a video to a generating item. The link is written once.
func (s *Store) AttachVideo(ctx context.Context, id, videoID uint) error {
	result := s.db.WithContext(ctx).Model(&models.PlanItem{}).
		Where("id = ? AND status = ? AND video_id IS NULL", id, models.ItemStatusGenerating).
		Update("video_id", videoID)
	return expectOne(result, "plan item", id)
}

// AttachScheduledPost links a post to a completed item and moves it to
// scheduled or posted.
func (s *Store) AttachScheduledPost(ctx context.Context, id, postID uint, to models.ItemStatus) error {
	result := s.db.WithContext(ctx).Model(&models.PlanItem{}).
		Where("id = ? AND status = ? AND scheduled_post_id IS NULL", id, models.ItemStatusCompleted).
		Updates(map[string]any{"status": to, "scheduled_post_id": postID})
	return expectOne(result, "plan item", id)
}

// CreateScheduledPost inserts a distribution record.
func (s *Store) CreateScheduledPost(ctx context.Context, post *models.ScheduledPost) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create scheduled post: %w", err)
	}
	return nil
}
