package businesscentral

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes of the v2.0 API pages. Validation tags reject rows that cannot be mirrored.

// itemBody is an items row
type itemBody struct {
	ID                    string          `json:"id" validate:"required,max=64"`
	Number                string          `json:"number" validate:"required,max=20"`
	DisplayName           string          `json:"displayName" validate:"max=100"`
	Type                  string          `json:"type"`
	ItemCategoryCode      string          `json:"itemCategoryCode" validate:"max=20"`
	BaseUnitOfMeasureCode string          `json:"baseUnitOfMeasureCode" validate:"max=10"`
	GTIN                  string          `json:"gtin" validate:"max=14"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	UnitCost              decimal.Decimal `json:"unitCost"`
	Inventory             decimal.Decimal `json:"inventory"`
	Blocked               bool            `json:"blocked"`
	LastModifiedDateTime  edmDateTime     `json:"lastModifiedDateTime"`
}

// priceListBody is a priceLists row
type priceListBody struct {
	ID                   string      `json:"id" validate:"required,max=64"`
	Code                 string      `json:"code" validate:"required,max=20"`
	Description          string      `json:"description" validate:"max=250"`
	CurrencyCode         string      `json:"currencyCode" validate:"max=10"`
	Status               string      `json:"status"`
	StartingDate         edmDate     `json:"startingDate"`
	EndingDate           edmDate     `json:"endingDate"`
	LastModifiedDateTime edmDateTime `json:"lastModifiedDateTime"`
}

// priceListLineBody is a priceListLines row
type priceListLineBody struct {
	ID                string          `json:"id" validate:"required,max=64"`
	PriceListID       string          `json:"priceListId" validate:"required,max=64"`
	ItemID            string          `json:"itemId" validate:"required,max=64"`
	UnitOfMeasureCode string          `json:"unitOfMeasureCode" validate:"max=10"`
	MinimumQuantity   decimal.Decimal `json:"minimumQuantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	StartingDate      edmDate         `json:"startingDate"`
	EndingDate        edmDate         `json:"endingDate"`
}

// customerBody is a customers row
type customerBody struct {
	ID                    string      `json:"id" validate:"required,max=64"`
	Number                string      `json:"number" validate:"required,max=20"`
	DisplayName           string      `json:"displayName" validate:"max=100"`
	Email                 string      `json:"email" validate:"omitempty,max=80"`
	PhoneNumber           string      `json:"phoneNumber" validate:"max=30"`
	AddressLine1          string      `json:"addressLine1" validate:"max=100"`
	AddressLine2          string      `json:"addressLine2" validate:"max=50"`
	City                  string      `json:"city" validate:"max=30"`
	PostalCode            string      `json:"postalCode" validate:"max=20"`
	Country               string      `json:"country" validate:"max=10"`
	CurrencyCode          string      `json:"currencyCode" validate:"max=10"`
	TaxRegistrationNumber string      `json:"taxRegistrationNumber" validate:"max=20"`
	Blocked               string      `json:"blocked"`
	LastModifiedDateTime  edmDateTime `json:"lastModifiedDateTime"`
}

// edmDate is an Edm.Date; "0001-01-01" means unset
type edmDate string

func (d edmDate) Time() (*time.Time, error) {
	s := strings.TrimSpace(string(d))
	if s == "" || s == "0001-01-01" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	return &t, nil
}

// edmDateTime is an Edm.DateTimeOffset; the zero year means unset
type edmDateTime string

func (d edmDateTime) Time() (*time.Time, error) {
	s := strings.TrimSpace(string(d))
	if s == "" || strings.HasPrefix(s, "0001-01-01") {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	t = t.UTC()
	return &t, nil
}
