package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Trigger modes
const (
	TriggerModeDaily     = "daily"
	TriggerModeTimeBased = "time_based"
	TriggerModeImmediate = "immediate"
)

// Plan is a recurring video plan owned by a user
type Plan struct {
	gorm.Model
	UserID       uint   `gorm:"not null;index"`
	User         User   `gorm:"constraint:OnDelete:CASCADE;"`
	Name         string `gorm:"not null;default:''"`
	Niche        string `gorm:"type:text"`
	Enabled      bool   `gorm:"not null;index"`
	TriggerMode  string `gorm:"not null;default:'daily'"`
	TriggerTime  string `gorm:"not null;default:'09:00'"`
	Timezone     string `gorm:"not null;default:'UTC'"`
	ItemsPerDay  int    `gorm:"not null;default:1"`
	AutoResearch bool   `gorm:"not null;default:false"`
	AutoApprove  bool   `gorm:"not null;default:false"`
	AutoCreate   bool   `gorm:"not null;default:false"`
	PostTime     *string

	Platforms          datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Topics             datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	GenerationMode     string                      `gorm:"not null;default:''"`
	VideoStyle         string                      `gorm:"not null;default:''"`
	AspectRatio        string                      `gorm:"not null;default:'portrait'"`
	GenerationSettings map[string]any              `gorm:"type:jsonb;serializer:json"`

	Items []PlanItem `gorm:"constraint:OnDelete:CASCADE;"`
}

// ItemsPerDayOrDefault returns the daily quota, treating non-positive values as one.
func (p Plan) ItemsPerDayOrDefault() int {
	if p.ItemsPerDay <= 0 {
		return 1
	}
	return p.ItemsPerDay
}
