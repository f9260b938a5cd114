package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an application user owning plans and distribution accounts
type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null"`
	Name        string `gorm:"not null;default:''"`
	Timezone    string `gorm:"not null;default:'UTC'"`
	LastLoginAt *time.Time

	// Associations
	SocialAccounts []SocialAccount `gorm:"constraint:OnDelete:CASCADE;"`
	Plans          []Plan          `gorm:"constraint:OnDelete:CASCADE;"`
}
