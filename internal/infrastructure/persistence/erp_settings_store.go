package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingsStore implements integration.SettingsProvider on the erp_settings table.
// Keys listed in integration.SecretSettings are sealed with the cipher.
type GormSettingsStore struct {
	db     *gorm.DB
	cipher *SecretCipher
}

// NewGormSettingsStore creates a new GormSettingsStore
func NewGormSettingsStore(db *gorm.DB, cipher *SecretCipher) *GormSettingsStore {
	return &GormSettingsStore{db: db, cipher: cipher}
}

// Get returns the value for key, or "" when unset
func (s *GormSettingsStore) Get(ctx context.Context, key string) (string, error) {
	var model models.SettingModel
	if err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return s.open(key, model.Value)
}

// Set stores value under key
func (s *GormSettingsStore) Set(ctx context.Context, key, value string) error {
	stored, err := s.seal(key, value)
	if err != nil {
		return err
	}
	model := models.SettingModel{Key: key, Value: stored}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}

// SetMany stores several values in one transaction
func (s *GormSettingsStore) SetMany(ctx context.Context, values map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &GormSettingsStore{db: tx, cipher: s.cipher}
		for key, value := range values {
			if err := inner.Set(ctx, key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
}

// All returns every stored setting, secrets opened
func (s *GormSettingsStore) All(ctx context.Context) (map[string]string, error) {
	var rows []models.SettingModel
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		value, err := s.open(row.Key, row.Value)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", row.Key, err)
		}
		out[row.Key] = value
	}
	return out, nil
}

// SeedDefaults writes non-empty defaults for keys that are not stored yet
func (s *GormSettingsStore) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	for key, value := range defaults {
		if value == "" {
			continue
		}
		stored, err := s.seal(key, value)
		if err != nil {
			return err
		}
		model := models.SettingModel{Key: key, Value: stored}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}
	return nil
}

func (s *GormSettingsStore) seal(key, value string) (string, error) {
	if !integration.SecretSettings[key] {
		return value, nil
	}
	return s.cipher.Seal(value, "setting:"+key)
}

func (s *GormSettingsStore) open(key, stored string) (string, error) {
	if !integration.SecretSettings[key] {
		return stored, nil
	}
	return s.cipher.Open(stored, "setting:"+key)
}
