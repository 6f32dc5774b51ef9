package listing

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/domain"
)

// Column describes one list column.
type Column struct {
	Property    string `json:"property"`
	DataIndex   string `json:"dataIndex,omitempty"`
	Label       string `json:"label"`
	Inline      string `json:"inlineEdit,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
	Align       string `json:"align,omitempty"`
	Natural     bool   `json:"naturalSorting,omitempty"`
	Visible     bool   `json:"visible"`
	AllowResize bool   `json:"allowResize"`
	CurrencyID  string `json:"currencyId,omitempty"`
}

const currencyColumnPrefix = "price-"

// Columns returns the product list columns. Every currency gets a price
// column ordered by position with the default currency last; only the
// default one is visible. Stock columns close the row.
func Columns(currencies []domain.Currency) []Column {
	cols := []Column{
		{Property: "name", Label: "Name", Inline: "string", Primary: true, Visible: true, AllowResize: true},
		{Property: "productNumber", Label: "Product number", Align: "right", Natural: true, Visible: true, AllowResize: true},
		{Property: "manufacturer.name", Label: "Manufacturer", Visible: true, AllowResize: true},
		{Property: "active", Label: "Active", Inline: "boolean", Align: "center", Visible: true, AllowResize: true},
	}

	sorted := append([]domain.Currency(nil), currencies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsSystemDefault != sorted[j].IsSystemDefault {
			return sorted[j].IsSystemDefault
		}
		return sorted[i].Position < sorted[j].Position
	})
	for _, c := range sorted {
		cols = append(cols, Column{
			Property:    currencyColumnPrefix + c.ISOCode,
			DataIndex:   "price." + c.ID.String(),
			Label:       c.Name,
			Align:       "right",
			Visible:     c.IsSystemDefault,
			AllowResize: true,
			CurrencyID:  c.ID.String(),
		})
	}

	return append(cols,
		Column{Property: "stock", Label: "Stock", Inline: "number", Align: "right", Visible: true, AllowResize: true},
		Column{Property: "availableStock", Label: "Available", Align: "right", Visible: true, AllowResize: true},
	)
}

func isCurrencyColumn(property string) bool {
	return strings.HasPrefix(property, currencyColumnPrefix) || strings.HasPrefix(property, "price.")
}

// CurrencyPrice returns the price row of a currency, or an empty linked
// price when the product has none.
func CurrencyPrice(currencyID uuid.UUID, prices []domain.Price) domain.Price {
	return domain.PriceForCurrency(currencyID, prices)
}

// Stock color variants.
const (
	StockSuccess = "success"
	StockWarning = "warning"
	StockError   = "error"
)

// StockColorVariant classifies a stock level for display.
func StockColorVariant(stock int) string {
	switch {
	case stock >= 25:
		return StockSuccess
	case stock > 0:
		return StockWarning
	default:
		return StockError
	}
}

// CellValue returns the raw value p shows in col. Unset prices are nil.
func CellValue(p *domain.Product, col Column) any {
	if col.CurrencyID != "" {
		id, err := uuid.Parse(col.CurrencyID)
		if err != nil {
			return nil
		}
		if gross := CurrencyPrice(id, p.Price).Gross; gross != nil {
			return *gross
		}
		return nil
	}
	switch col.Property {
	case "name":
		return p.DisplayName("")
	case "productNumber":
		return p.ProductNumber
	case "manufacturer.name":
		if p.Manufacturer == nil {
			return nil
		}
		return p.Manufacturer.Name
	case "active":
		if p.Active == nil {
			return nil
		}
		return *p.Active
	case "stock":
		return p.Stock
	case "availableStock":
		return p.AvailableStock
	}
	return nil
}
