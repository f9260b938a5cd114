package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scheduled post status constants
const (
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
)

// ScheduledPost records a distribution request for a completed video
type ScheduledPost struct {
	gorm.Model
	PlanItemID  uint                        `gorm:"not null;index"`
	VideoID     uint                        `gorm:"not null;index"`
	Platforms   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Status      string                      `gorm:"not null;default:'scheduled'"`
	RequestID   string                      `gorm:"not null;default:''"`
	ScheduledAt *time.Time
	PostedAt    *time.Time
}
