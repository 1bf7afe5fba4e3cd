package models

import (
	"time"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SyncedModel carries the fields every mirrored ERP row has
type SyncedModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	LastSync   time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// BeforeCreate assigns a surrogate id when the caller did not
func (m *SyncedModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ItemModel is the persistence model for integration.Item
type ItemModel struct {
	SyncedModel
	Number            string          `gorm:"type:varchar(50);index"`
	DisplayName       string          `gorm:"type:varchar(255)"`
	Type              string          `gorm:"type:varchar(30)"`
	ItemCategoryCode  string          `gorm:"type:varchar(50)"`
	BaseUnitOfMeasure string          `gorm:"type:varchar(20)"`
	GTIN              string          `gorm:"column:gtin;type:varchar(20)"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Inventory         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Blocked           bool            `gorm:"not null;default:false"`
	RemoteModifiedAt  *time.Time
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "erp_items"
}

// ToDomain converts the persistence model to a domain Item
func (m *ItemModel) ToDomain() *integration.Item {
	return &integration.Item{
		ID:                m.ID,
		ExternalID:        m.ExternalID,
		Number:            m.Number,
		DisplayName:       m.DisplayName,
		Type:              m.Type,
		ItemCategoryCode:  m.ItemCategoryCode,
		BaseUnitOfMeasure: m.BaseUnitOfMeasure,
		GTIN:              m.GTIN,
		UnitPrice:         m.UnitPrice,
		UnitCost:          m.UnitCost,
		Inventory:         m.Inventory,
		Blocked:           m.Blocked,
		RemoteModifiedAt:  m.RemoteModifiedAt,
		LastSync:          m.LastSync,
	}
}

// FromDomain populates the persistence model from a domain Item
func (m *ItemModel) FromDomain(e *integration.Item) {
	m.ID = e.ID
	m.ExternalID = e.ExternalID
	m.Number = e.Number
	m.DisplayName = e.DisplayName
	m.Type = e.Type
	m.ItemCategoryCode = e.ItemCategoryCode
	m.BaseUnitOfMeasure = e.BaseUnitOfMeasure
	m.GTIN = e.GTIN
	m.UnitPrice = e.UnitPrice
	m.UnitCost = e.UnitCost
	m.Inventory = e.Inventory
	m.Blocked = e.Blocked
	m.RemoteModifiedAt = e.RemoteModifiedAt
	m.LastSync = e.LastSync
}

// PriceListModel is the persistence model for integration.PriceList
type PriceListModel struct {
	SyncedModel
	Code             string `gorm:"type:varchar(50);index"`
	Description      string `gorm:"type:varchar(255)"`
	CurrencyCode     string `gorm:"type:varchar(10)"`
	Status           string `gorm:"type:varchar(20)"`
	StartingDate     *time.Time
	EndingDate       *time.Time
	RemoteModifiedAt *time.Time
}

// TableName returns the table name for GORM
func (PriceListModel) TableName() string {
	return "erp_price_lists"
}

// ToDomain converts the persistence model to a domain PriceList
func (m *PriceListModel) ToDomain() *integration.PriceList {
	return &integration.PriceList{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		Code:             m.Code,
		Description:      m.Description,
		CurrencyCode:     m.CurrencyCode,
		Status:           m.Status,
		StartingDate:     m.StartingDate,
		EndingDate:       m.EndingDate,
		RemoteModifiedAt: m.RemoteModifiedAt,
		LastSync:         m.LastSync,
	}
}

// FromDomain populates the persistence model from a domain PriceList
func (m *PriceListModel) FromDomain(e *integration.PriceList) {
	m.ID = e.ID
	m.ExternalID = e.ExternalID
	m.Code = e.Code
	m.Description = e.Description
	m.CurrencyCode = e.CurrencyCode
	m.Status = e.Status
	m.StartingDate = e.StartingDate
	m.EndingDate = e.EndingDate
	m.RemoteModifiedAt = e.RemoteModifiedAt
	m.LastSync = e.LastSync
}

// PriceListLineModel is the persistence model for integration.PriceListLine.
// PriceListID and ItemID reference local rows.
type PriceListLineModel struct {
	SyncedModel
	PriceListID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	PriceListExternalID string          `gorm:"type:varchar(64);not null"`
	ItemExternalID      string          `gorm:"type:varchar(64);not null"`
	UnitOfMeasureCode   string          `gorm:"type:varchar(20)"`
	MinimumQuantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StartingDate        *time.Time
	EndingDate          *time.Time
}

// TableName returns the table name for GORM
func (PriceListLineModel) TableName() string {
	return "erp_price_list_lines"
}

// ToDomain converts the persistence model to a domain PriceListLine
func (m *PriceListLineModel) ToDomain() *integration.PriceListLine {
	return &integration.PriceListLine{
		ID:                  m.ID,
		ExternalID:          m.ExternalID,
		PriceListExternalID: m.PriceListExternalID,
		ItemExternalID:      m.ItemExternalID,
		PriceListID:         m.PriceListID,
		ItemID:              m.ItemID,
		UnitOfMeasureCode:   m.UnitOfMeasureCode,
		MinimumQuantity:     m.MinimumQuantity,
		UnitPrice:           m.UnitPrice,
		StartingDate:        m.StartingDate,
		EndingDate:          m.EndingDate,
		LastSync:            m.LastSync,
	}
}

// FromDomain populates the persistence model from a domain PriceListLine
func (m *PriceListLineModel) FromDomain(e *integration.PriceListLine) {
	m.ID = e.ID
	m.ExternalID = e.ExternalID
	m.PriceListExternalID = e.PriceListExternalID
	m.ItemExternalID = e.ItemExternalID
	m.PriceListID = e.PriceListID
	m.ItemID = e.ItemID
	m.UnitOfMeasureCode = e.UnitOfMeasureCode
	m.MinimumQuantity = e.MinimumQuantity
	m.UnitPrice = e.UnitPrice
	m.StartingDate = e.StartingDate
	m.EndingDate = e.EndingDate
	m.LastSync = e.LastSync
}

// CustomerModel is the persistence model for integration.Customer
type CustomerModel struct {
	SyncedModel
	Number           string `gorm:"type:varchar(50);index"`
	DisplayName      string `gorm:"type:varchar(255)"`
	Email            string `gorm:"type:varchar(255)"`
	PhoneNumber      string `gorm:"type:varchar(40);index"`
	AddressLine1     string `gorm:"type:varchar(255)"`
	AddressLine2     string `gorm:"type:varchar(255)"`
	City             string `gorm:"type:varchar(100)"`
	PostalCode       string `gorm:"type:varchar(20)"`
	Country          string `gorm:"type:varchar(10)"`
	CurrencyCode     string `gorm:"type:varchar(10)"`
	TaxRegistration  string `gorm:"type:varchar(50)"`
	Blocked          string `gorm:"type:varchar(20)"`
	RemoteModifiedAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "erp_customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *integration.Customer {
	return &integration.Customer{
		ID:               m.ID,
		ExternalID:       m.ExternalID,
		Number:           m.Number,
		DisplayName:      m.DisplayName,
		Email:            m.Email,
		PhoneNumber:      m.PhoneNumber,
		AddressLine1:     m.AddressLine1,
		AddressLine2:     m.AddressLine2,
		City:             m.City,
		PostalCode:       m.PostalCode,
		Country:          m.Country,
		CurrencyCode:     m.CurrencyCode,
		TaxRegistration:  m.TaxRegistration,
		Blocked:          m.Blocked,
		RemoteModifiedAt: m.RemoteModifiedAt,
		LastSync:         m.LastSync,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(e *integration.Customer) {
	m.ID = e.ID
	m.ExternalID = e.ExternalID
	m.Number = e.Number
	m.DisplayName = e.DisplayName
	m.Email = e.Email
	m.PhoneNumber = e.PhoneNumber
	m.AddressLine1 = e.AddressLine1
	m.AddressLine2 = e.AddressLine2
	m.City = e.City
	m.PostalCode = e.PostalCode
	m.Country = e.Country
	m.CurrencyCode = e.CurrencyCode
	m.TaxRegistration = e.TaxRegistration
	m.Blocked = e.Blocked
	m.RemoteModifiedAt = e.RemoteModifiedAt
	m.LastSync = e.LastSync
}
