package store

import (
	"context"
	"fmt"

	"github.com/reelcast/autopilot/internal/models"
)

// EnabledPlans returns every enabled plan.
func (s *Store) EnabledPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled plans: %w", err)
	}
	return plans, nil
}

// FindPlan loads a plan by id.
func (s *Store) FindPlan(ctx context.Context, id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, notFound(err, "plan", id)
	}
	return &plan, nil
}

// SocialAccount returns the user's linked account for a distribution provider.
func (s *Store) SocialAccount(ctx context.Context, userID uint, provider string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&account).Error
	if err != nil {
		return nil, notFound(err, "social account for user", userID)
	}
	return &account, nil
}
