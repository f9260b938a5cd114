package database

import (
	"log"

	"github.com/reelcast/autopilot/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existingUser models.User
	result := db.Where("email = ?", "dev@reelcast.local").First(&existingUser)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	user := models.User{
		Email:    "dev@reelcast.local",
		Name:     "Dev User",
		Timezone: "America/Chicago",
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	// Profile key is encrypted by the model hook when encryption is initialized.
	account := models.SocialAccount{
		UserID:          user.ID,
		Provider:        models.SocialAccountProviderUploadPost,
		ProfileUsername: "dev-creator",
		ProfileKey:      "dev-profile-key-placeholder",
	}
	if err := db.Create(&account).Error; err != nil {
		return err
	}

	postTime := "18:00"
	daily := models.Plan{
		UserID:       user.ID,
		Name:         "Morning productivity tips",
		Niche:        "productivity for remote workers",
		Enabled:      true,
		TriggerMode:  models.TriggerModeDaily,
		TriggerTime:  "09:00",
		Timezone:     "America/Chicago",
		ItemsPerDay:  1,
		AutoResearch: true,
		PostTime:     &postTime,
		Platforms:    datatypes.JSONSlice[string]{"tiktok", "instagram"},
		Topics:       datatypes.JSONSlice[string]{},
		VideoStyle:   "bright flat illustration",
	}
	if err := db.Create(&daily).Error; err != nil {
		return err
	}

	immediate := models.Plan{
		UserID:         user.ID,
		Name:           "Money basics (fully automatic)",
		Niche:          "personal finance basics",
		Enabled:        true,
		TriggerMode:    models.TriggerModeImmediate,
		Timezone:       "UTC",
		ItemsPerDay:    1,
		AutoApprove:    true,
		AutoCreate:     true,
		Platforms:      datatypes.JSONSlice[string]{"youtube"},
		Topics:         datatypes.JSONSlice[string]{"Why an emergency fund comes first", "The 24-hour rule for purchases"},
		GenerationMode: "sora-2",
	}
	if err := db.Create(&immediate).Error; err != nil {
		return err
	}

	log.Println("Seeded dev data: 1 user, 1 social account, 2 plans")
	return nil
}
