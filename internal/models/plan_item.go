package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ItemStatus is the lifecycle state of a plan item.
type ItemStatus string

// Plan item status constants
const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusReady      ItemStatus = "ready"
	ItemStatusDraft      ItemStatus = "draft"
	ItemStatusApproved   ItemStatus = "approved"
	ItemStatusGenerating ItemStatus = "generating"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusScheduled  ItemStatus = "scheduled"
	ItemStatusPosted     ItemStatus = "posted"
	ItemStatusFailed     ItemStatus = "failed"
)

// ScriptStatus tracks review of a generated script.
type ScriptStatus string

// Script status constants
const (
	ScriptStatusNone     ScriptStatus = ""
	ScriptStatusDraft    ScriptStatus = "draft"
	ScriptStatusApproved ScriptStatus = "approved"
	ScriptStatusRejected ScriptStatus = "rejected"
)

// Research holds the structured idea behind an item.
type Research struct {
	Idea         string `json:"idea"`
	Description  string `json:"description"`
	WhyItMatters string `json:"why_it_matters"`
	UsefulTips   string `json:"useful_tips"`
	Category     string `json:"category"`
}

// PlanItem is one candidate video of a plan for a calendar date
type PlanItem struct {
	gorm.Model
	PlanID          uint                        `gorm:"not null;uniqueIndex:idx_plan_items_plan_date_slot"`
	Plan            Plan                        `gorm:"constraint:OnDelete:CASCADE;"`
	ScheduledDate   string                      `gorm:"not null;uniqueIndex:idx_plan_items_plan_date_slot"` // YYYY-MM-DD, plan-local
	Slot            int                         `gorm:"not null;default:0;uniqueIndex:idx_plan_items_plan_date_slot"`
	Topic           string                      `gorm:"type:text;not null;default:''"`
	Research        *Research                   `gorm:"type:jsonb;serializer:json"`
	Script          *string                     `gorm:"type:text"`
	ScriptStatus    ScriptStatus                `gorm:"not null;default:''"`
	Status          ItemStatus                  `gorm:"not null;default:'pending';index"`
	VideoID         *uint                       `gorm:"index"`
	ScheduledPostID *uint                       `gorm:"index"`
	ErrorMessage    string                      `gorm:"column:error_message;type:text"`
	Platforms       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
}

// Encode marshals research for column updates that bypass the serializer.
func (r Research) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode research: %w", err)
	}
	return string(b), nil
}

// TargetPlatforms returns the item's platforms, falling back to the plan default.
func (i PlanItem) TargetPlatforms(plan Plan) []string {
	if len(i.Platforms) > 0 {
		return i.Platforms
	}
	return plan.Platforms
}
