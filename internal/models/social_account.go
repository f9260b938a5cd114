package models

import (
	"github.com/reelcast/autopilot/internal/crypto"
	"gorm.io/gorm"
)

// SocialAccountProviderUploadPost identifies accounts distributed through upload-post.com.
const SocialAccountProviderUploadPost = "upload-post"

var secrets *crypto.SecretBox

// InitEncryption initializes the encryptor for the models package.
// Must be called before any database operations involving SocialAccount.
func InitEncryption(encryptionKey string) error {
	var err error
	secrets, err = crypto.NewSecretBox(encryptionKey)
	return err
}

// SocialAccount links a user to a distribution profile. ProfileKey is stored encrypted.
type SocialAccount struct {
	gorm.Model
	UserID          uint   `gorm:"not null;uniqueIndex:idx_social_accounts_user_provider,where:deleted_at IS NULL"`
	User            User   `gorm:"constraint:OnDelete:CASCADE;"`
	Provider        string `gorm:"not null;uniqueIndex:idx_social_accounts_user_provider,where:deleted_at IS NULL"`
	ProfileUsername string `gorm:"not null"`
	ProfileKey      string `gorm:"type:text"` // stored encrypted
}

// BeforeSave encrypts the profile key before saving to database.
func (a *SocialAccount) BeforeSave(tx *gorm.DB) error {
	if secrets == nil || a.ProfileKey == "" {
		return nil
	}

	encrypted, err := secrets.Seal(a.ProfileKey)
	if err != nil {
		return err
	}
	a.ProfileKey = encrypted
	return nil
}

// AfterSave restores the plaintext key on the in-memory record.
func (a *SocialAccount) AfterSave(tx *gorm.DB) error {
	return a.decrypt()
}

// AfterFind decrypts the profile key after loading from database
func (a *SocialAccount) AfterFind(tx *gorm.DB) error {
	return a.decrypt()
}

func (a *SocialAccount) decrypt() error {
	if secrets == nil || a.ProfileKey == "" {
		return nil
	}

	decrypted, err := secrets.Open(a.ProfileKey)
	if err != nil {
		return err
	}
	a.ProfileKey = decrypted
	return nil
}
