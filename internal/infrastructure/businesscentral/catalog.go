package businesscentral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/erp/bcsync/internal/domain/integration"
)

// Catalog reads the master data collections and decodes them into domain entities.
// Rows that cannot be decoded come back as records carrying integration.ErrValidation.
type Catalog struct {
	client   *Client
	paths    EntityPaths
	pageSize int
	validate *validator.Validate
}

// NewCatalog creates a Catalog on top of a Client
func NewCatalog(client *Client, config *Config) (*Catalog, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Catalog{
		client:   client,
		paths:    config.Paths,
		pageSize: config.PageSize,
		validate: validator.New(),
	}, nil
}

// FetchItems implements integration.ERPCatalog
func (c *Catalog) FetchItems(ctx context.Context, nextLink string) (*integration.Page[integration.Item], error) {
	return fetchPage(ctx, c, c.paths.Items, nextLink, func(b itemBody) string { return b.ID }, c.toItem)
}

// FetchPriceLists implements integration.ERPCatalog
func (c *Catalog) FetchPriceLists(ctx context.Context, nextLink string) (*integration.Page[integration.PriceList], error) {
	return fetchPage(ctx, c, c.paths.PriceLists, nextLink, func(b priceListBody) string { return b.ID }, c.toPriceList)
}

// FetchPriceListLines implements integration.ERPCatalog
func (c *Catalog) FetchPriceListLines(ctx context.Context, nextLink string) (*integration.Page[integration.PriceListLine], error) {
	return fetchPage(ctx, c, c.paths.PriceListLines, nextLink, func(b priceListLineBody) string { return b.ID }, c.toPriceListLine)
}

// FetchCustomers implements integration.ERPCatalog
func (c *Catalog) FetchCustomers(ctx context.Context, nextLink string) (*integration.Page[integration.Customer], error) {
	return fetchPage(ctx, c, c.paths.Customers, nextLink, func(b customerBody) string { return b.ID }, c.toCustomer)
}

// ListCompanies implements integration.ERPCatalog
func (c *Catalog) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	return c.client.ListCompanies(ctx)
}

// fetchPage requests the first page (empty nextLink) or a continuation and decodes every row
// independently, so one malformed row never hides the rest of the page.
func fetchPage[W any, T any](
	ctx context.Context,
	c *Catalog,
	entity, nextLink string,
	key func(W) string,
	convert func(W) (T, error),
) (*integration.Page[T], error) {
	var (
		page *Page
		err  error
	)
	if nextLink == "" {
		page, err = c.client.ListPage(ctx, entity, ListOptions{Top: c.pageSize})
	} else {
		page, err = c.client.FollowNextLink(ctx, nextLink)
	}
	if err != nil {
		return nil, err
	}

	records := make([]integration.Record[T], 0, len(page.Value))
	for i, raw := range page.Value {
		position := fmt.Sprintf("%s[%d]", entity, i)

		var wire W
		if err := json.Unmarshal(raw, &wire); err != nil {
			rowKey := rowID(raw)
			if rowKey == "" {
				rowKey = position
			}
			records = append(records, integration.Record[T]{Key: rowKey, Err: invalid(err)})
			continue
		}

		rowKey := key(wire)
		if rowKey == "" {
			rowKey = position
		}
		if err := c.validate.Struct(wire); err != nil {
			records = append(records, integration.Record[T]{Key: rowKey, Err: invalid(err)})
			continue
		}

		value, err := convert(wire)
		if err != nil {
			records = append(records, integration.Record[T]{Key: rowKey, Err: invalid(err)})
			continue
		}
		records = append(records, integration.Record[T]{Key: rowKey, Value: value})
	}

	return &integration.Page[T]{Records: records, NextLink: page.NextLink}, nil
}

// rowID reads only the id of a row the full wire type could not decode
func rowID(raw json.RawMessage) string {
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return ""
	}
	return row.ID
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", integration.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", integration.ErrValidation, err)
}

// text normalizes free text to NFC without surrounding space
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// code normalizes an ERP code; codes are case-insensitive upstream.
// A Caser carries state, so each call gets its own.
func code(s string) string {
	return cases.Upper(language.Und).String(text(s))
}

func (c *Catalog) toItem(b itemBody) (integration.Item, error) {
	modified, err := b.LastModifiedDateTime.Time()
	if err != nil {
		return integration.Item{}, err
	}
	return integration.Item{
		ExternalID:        b.ID,
		Number:            code(b.Number),
		DisplayName:       text(b.DisplayName),
		Type:              text(b.Type),
		ItemCategoryCode:  code(b.ItemCategoryCode),
		BaseUnitOfMeasure: code(b.BaseUnitOfMeasureCode),
		GTIN:              text(b.GTIN),
		UnitPrice:         b.UnitPrice,
		UnitCost:          b.UnitCost,
		Inventory:         b.Inventory,
		Blocked:           b.Blocked,
		RemoteModifiedAt:  modified,
	}, nil
}

func (c *Catalog) toPriceList(b priceListBody) (integration.PriceList, error) {
	starting, err := b.StartingDate.Time()
	if err != nil {
		return integration.PriceList{}, err
	}
	ending, err := b.EndingDate.Time()
	if err != nil {
		return integration.PriceList{}, err
	}
	modified, err := b.LastModifiedDateTime.Time()
	if err != nil {
		return integration.PriceList{}, err
	}
	return integration.PriceList{
		ExternalID:       b.ID,
		Code:             code(b.Code),
		Description:      text(b.Description),
		CurrencyCode:     code(b.CurrencyCode),
		Status:           text(b.Status),
		StartingDate:     starting,
		EndingDate:       ending,
		RemoteModifiedAt: modified,
	}, nil
}

func (c *Catalog) toPriceListLine(b priceListLineBody) (integration.PriceListLine, error) {
	starting, err := b.StartingDate.Time()
	if err != nil {
		return integration.PriceListLine{}, err
	}
	ending, err := b.EndingDate.Time()
	if err != nil {
		return integration.PriceListLine{}, err
	}
	if b.UnitPrice.IsNegative() {
		return integration.PriceListLine{}, fmt.Errorf("negative unit price %s", b.UnitPrice)
	}
	return integration.PriceListLine{
		ExternalID:          b.ID,
		PriceListExternalID: b.PriceListID,
		ItemExternalID:      b.ItemID,
		UnitOfMeasureCode:   code(b.UnitOfMeasureCode),
		MinimumQuantity:     b.MinimumQuantity,
		UnitPrice:           b.UnitPrice,
		StartingDate:        starting,
		EndingDate:          ending,
	}, nil
}

func (c *Catalog) toCustomer(b customerBody) (integration.Customer, error) {
	modified, err := b.LastModifiedDateTime.Time()
	if err != nil {
		return integration.Customer{}, err
	}
	return integration.Customer{
		ExternalID:       b.ID,
		Number:           code(b.Number),
		DisplayName:      text(b.DisplayName),
		Email:            strings.ToLower(text(b.Email)),
		PhoneNumber:      text(b.PhoneNumber),
		AddressLine1:     text(b.AddressLine1),
		AddressLine2:     text(b.AddressLine2),
		City:             text(b.City),
		PostalCode:       text(b.PostalCode),
		Country:          code(b.Country),
		CurrencyCode:     code(b.CurrencyCode),
		TaxRegistration:  text(b.TaxRegistrationNumber),
		Blocked:          text(b.Blocked),
		RemoteModifiedAt: modified,
	}, nil
}
