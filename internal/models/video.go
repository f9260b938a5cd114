package models

import (
	"time"

	"gorm.io/gorm"
)

// VideoStatus is the lifecycle state of a generation job.
type VideoStatus string

// Video status constants
const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Video is a generation job record linked to a provider task
type Video struct {
	gorm.Model
	UserID          uint        `gorm:"not null;index"`
	PlanItemID      *uint       `gorm:"index"`
	Topic           string      `gorm:"type:text;not null;default:''"`
	Script          string      `gorm:"type:text;not null;default:''"`
	Style           string      `gorm:"not null;default:''"`
	DurationSeconds int         `gorm:"not null;default:10"`
	AspectRatio     string      `gorm:"not null;default:'portrait'"`
	GenerationMode  string      `gorm:"not null;default:''"`
	Status          VideoStatus `gorm:"not null;default:'pending';index"`
	VideoURL        string      `gorm:"column:video_url;type:text"`
	Provider        string      `gorm:"not null;default:''"`
	Model           string      `gorm:"not null;default:''"`
	ProviderTaskID  string      `gorm:"not null;default:'';index"`
	ErrorMessage    string      `gorm:"column:error_message;type:text"`
	CompletedAt     *time.Time
}

// HasProviderTask reports whether a provider task was already created for this video.
func (v Video) HasProviderTask() bool {
	return v.ProviderTaskID != ""
}
