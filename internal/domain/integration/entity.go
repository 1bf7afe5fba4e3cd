package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityFamily is a synchronizable ERP collection
type EntityFamily string

const (
	FamilyItems          EntityFamily = "items"
	FamilyPriceLists     EntityFamily = "price_lists"
	FamilyPriceListLines EntityFamily = "price_list_lines"
	FamilyCustomers      EntityFamily = "customers"
)

// AllFamilies returns every family in dependency order (lines need lists and items first)
func AllFamilies() []EntityFamily {
	return []EntityFamily{
		FamilyItems,
		FamilyPriceLists,
		FamilyPriceListLines,
		FamilyCustomers,
	}
}

// IsValid checks if the family is known
func (f EntityFamily) IsValid() bool {
	switch f {
	case FamilyItems, FamilyPriceLists, FamilyPriceListLines, FamilyCustomers:
		return true
	default:
		return false
	}
}

// String returns the string representation
func (f EntityFamily) String() string {
	return string(f)
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// Item is an ERP item mirrored locally
type Item struct {
	ID                uuid.UUID
	ExternalID        string
	Number            string
	DisplayName       string
	Type              string
	ItemCategoryCode  string
	BaseUnitOfMeasure string
	GTIN              string
	UnitPrice         decimal.Decimal
	UnitCost          decimal.Decimal
	Inventory         decimal.Decimal
	Blocked           bool
	RemoteModifiedAt  *time.Time
	LastSync          time.Time
}

// PriceList is an ERP sales price list
type PriceList struct {
	ID               uuid.UUID
	ExternalID       string
	Code             string
	Description      string
	CurrencyCode     string
	Status           string
	StartingDate     *time.Time
	EndingDate       *time.Time
	RemoteModifiedAt *time.Time
	LastSync         time.Time
}

// PriceListLine is one price of an item on a price list.
// PriceListID and ItemID are local ids resolved from the external ones.
type PriceListLine struct {
	ID                  uuid.UUID
	ExternalID          string
	PriceListExternalID string
	ItemExternalID      string
	PriceListID         uuid.UUID
	ItemID              uuid.UUID
	UnitOfMeasureCode   string
	MinimumQuantity     decimal.Decimal
	UnitPrice           decimal.Decimal
	StartingDate        *time.Time
	EndingDate          *time.Time
	LastSync            time.Time
}

// Customer is an ERP customer mirrored locally
type Customer struct {
	ID               uuid.UUID
	ExternalID       string
	Number           string
	DisplayName      string
	Email            string
	PhoneNumber      string
	AddressLine1     string
	AddressLine2     string
	City             string
	PostalCode       string
	Country          string
	CurrencyCode     string
	TaxRegistration  string
	Blocked          string
	RemoteModifiedAt *time.Time
	LastSync         time.Time
}

// Company is a Business Central company visible to the credential
type Company struct {
	ExternalID    string `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	SystemVersion string `json:"system_version,omitempty"`
}

// ---------------------------------------------------------------------------
// Remote pages
// ---------------------------------------------------------------------------

// Record is one row of a remote page: the decoded entity, or the reason it could not be decoded
type Record[T any] struct {
	// Key is the natural key (ERP id) when known, otherwise a positional label
	Key   string
	Value T
	Err   error
}

// Page is one page of a remote collection
type Page[T any] struct {
	Records []Record[T]
	// NextLink is the continuation marker; empty on the last page
	NextLink string
}

// HasMore reports whether a continuation exists
func (p *Page[T]) HasMore() bool {
	return p.NextLink != ""
}

// RecordsOf wraps already decoded entities into records
func RecordsOf[T any](values []T, key func(T) string) []Record[T] {
	records := make([]Record[T], 0, len(values))
	for _, v := range values {
		records = append(records, Record[T]{Key: key(v), Value: v})
	}
	return records
}

// ---------------------------------------------------------------------------
// Local identity
// ---------------------------------------------------------------------------

// LocalID returns the local surrogate id
func (i *Item) LocalID() uuid.UUID { return i.ID }

// MarkSynced binds the entity to a local row and stamps the sync time
func (i *Item) MarkSynced(id uuid.UUID, at time.Time) { i.ID, i.LastSync = id, at }

// LocalID returns the local surrogate id
func (p *PriceList) LocalID() uuid.UUID { return p.ID }

// MarkSynced binds the entity to a local row and stamps the sync time
func (p *PriceList) MarkSynced(id uuid.UUID, at time.Time) { p.ID, p.LastSync = id, at }

// LocalID returns the local surrogate id
func (l *PriceListLine) LocalID() uuid.UUID { return l.ID }

// MarkSynced binds the entity to a local row and stamps the sync time
func (l *PriceListLine) MarkSynced(id uuid.UUID, at time.Time) { l.ID, l.LastSync = id, at }

// LocalID returns the local surrogate id
func (c *Customer) LocalID() uuid.UUID { return c.ID }

// MarkSynced binds the entity to a local row and stamps the sync time
func (c *Customer) MarkSynced(id uuid.UUID, at time.Time) { c.ID, c.LastSync = id, at }
