package models

import (
	"time"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncRunModel is one finished sync run
type SyncRunModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Family     string    `gorm:"type:varchar(30);not null;index"`
	Created    int       `gorm:"not null;default:0"`
	Updated    int       `gorm:"not null;default:0"`
	Errors     int       `gorm:"not null;default:0"`
	Pages      int       `gorm:"not null;default:0"`
	Aborted    string    `gorm:"type:text;not null;default:''"`
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "erp_sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun
func (m *SyncRunModel) ToDomain() integration.SyncRun {
	return integration.SyncRun{
		Family:     integration.EntityFamily(m.Family),
		Created:    m.Created,
		Updated:    m.Updated,
		Errors:     m.Errors,
		Pages:      m.Pages,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Aborted:    m.Aborted,
	}
}

// FromDomain populates the persistence model from a domain SyncRun
func (m *SyncRunModel) FromDomain(r integration.SyncRun) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Family = r.Family.String()
	m.Created = r.Created
	m.Updated = r.Updated
	m.Errors = r.Errors
	m.Pages = r.Pages
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	m.Aborted = r.Aborted
}

// AllModels lists every model for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&SettingModel{},
		&OAuthTokenModel{},
		&OAuthStateModel{},
		&ItemModel{},
		&PriceListModel{},
		&PriceListLineModel{},
		&CustomerModel{},
		&SyncRunModel{},
	}
}
