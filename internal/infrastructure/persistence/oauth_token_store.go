package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTokenStore implements integration.TokenStore as a single row per credential key.
// Save replaces all three token fields in one statement.
type GormTokenStore struct {
	db     *gorm.DB
	cipher *SecretCipher
	key    string
}

// NewGormTokenStore creates a token store bound to one credential key
func NewGormTokenStore(db *gorm.DB, cipher *SecretCipher, credentialKey string) *GormTokenStore {
	return &GormTokenStore{db: db, cipher: cipher, key: credentialKey}
}

// Load returns the stored state or integration.ErrTokenNotFound
func (s *GormTokenStore) Load(ctx context.Context) (*integration.TokenState, error) {
	var model models.OAuthTokenModel
	if err := s.db.WithContext(ctx).First(&model, "credential_key = ?", s.key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrTokenNotFound
		}
		return nil, err
	}

	access, err := s.cipher.Open(model.AccessToken, s.aad("access"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrCorruptTokenState, err)
	}
	refresh, err := s.cipher.Open(model.RefreshToken, s.aad("refresh"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrCorruptTokenState, err)
	}

	state := &integration.TokenState{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    model.ExpiresAt.UTC(),
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// Save upserts the whole state
func (s *GormTokenStore) Save(ctx context.Context, state integration.TokenState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	access, err := s.cipher.Seal(state.AccessToken, s.aad("access"))
	if err != nil {
		return err
	}
	refresh, err := s.cipher.Seal(state.RefreshToken, s.aad("refresh"))
	if err != nil {
		return err
	}

	model := models.OAuthTokenModel{
		CredentialKey: s.key,
		AccessToken:   access,
		RefreshToken:  refresh,
		ExpiresAt:     state.ExpiresAt.UTC(),
		UpdatedAt:     time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&model).Error
}

// Clear removes the stored state
func (s *GormTokenStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("credential_key = ?", s.key).
		Delete(&models.OAuthTokenModel{}).Error
}

func (s *GormTokenStore) aad(field string) string {
	return "token:" + s.key + ":" + field
}

// GormStateStore implements integration.StateStore as a single row per credential key
type GormStateStore struct {
	db  *gorm.DB
	key string
}

// NewGormStateStore creates a state store bound to one credential key
func NewGormStateStore(db *gorm.DB, credentialKey string) *GormStateStore {
	return &GormStateStore{db: db, key: credentialKey}
}

// Put replaces any pending nonce
func (s *GormStateStore) Put(ctx context.Context, state integration.OAuthState) error {
	model := models.OAuthStateModel{
		CredentialKey: s.key,
		Value:         state.Value,
		CreatedAt:     state.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "credential_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
	}).Create(&model).Error
}

// Consume reads and deletes the pending nonce.
// The delete is conditional on the value read, so of two concurrent consumers only one wins.
func (s *GormStateStore) Consume(ctx context.Context) (*integration.OAuthState, error) {
	var consumed *integration.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.OAuthStateModel
		if err := tx.First(&model, "credential_key = ?", s.key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integration.ErrStateNotFound
			}
			return err
		}
		res := tx.Where("credential_key = ? AND value = ?", s.key, model.Value).
			Delete(&models.OAuthStateModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return integration.ErrStateNotFound
		}
		consumed = &integration.OAuthState{Value: model.Value, CreatedAt: model.CreatedAt.UTC()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// Pending returns the pending nonce without consuming it
func (s *GormStateStore) Pending(ctx context.Context) (*integration.OAuthState, error) {
	var model models.OAuthStateModel
	if err := s.db.WithContext(ctx).First(&model, "credential_key = ?", s.key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrStateNotFound
		}
		return nil, err
	}
	return &integration.OAuthState{Value: model.Value, CreatedAt: model.CreatedAt.UTC()}, nil
}

// Clear drops any pending nonce
func (s *GormStateStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("credential_key = ?", s.key).
		Delete(&models.OAuthStateModel{}).Error
}
