package models

import "time"

// SettingModel is one runtime setting (credential, api url, provider keys)
type SettingModel struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null;default:''"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettingModel) TableName() string {
	return "erp_settings"
}

// OAuthTokenModel holds the token pair of one credential.
// Access and refresh tokens may be sealed; see persistence.SecretCipher.
type OAuthTokenModel struct {
	CredentialKey string    `gorm:"type:varchar(64);primaryKey"`
	AccessToken   string    `gorm:"type:text;not null"`
	RefreshToken  string    `gorm:"type:text;not null;default:''"`
	ExpiresAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OAuthTokenModel) TableName() string {
	return "erp_oauth_tokens"
}

// OAuthStateModel is the pending authorization nonce of one credential
type OAuthStateModel struct {
	CredentialKey string    `gorm:"type:varchar(64);primaryKey"`
	Value         string    `gorm:"type:varchar(128);not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OAuthStateModel) TableName() string {
	return "erp_oauth_states"
}
