package domain

import "github.com/google/uuid"

// Price is a currency scoped gross/net pair. Nil amounts are unset.
type Price struct {
	CurrencyID uuid.UUID  `json:"currencyId"`
	Gross      *float64   `json:"gross"`
	Net        *float64   `json:"net"`
	Linked     bool       `json:"linked"`
	ListPrice  *ListPrice `json:"listPrice,omitempty"`
}

// ListPrice is the optional strike-through price of a Price row.
type ListPrice struct {
	Gross  *float64 `json:"gross"`
	Net    *float64 `json:"net"`
	Linked bool     `json:"linked"`
}

// AdvancedPrice is a rule and quantity scoped price matrix row.
type AdvancedPrice struct {
	ID            uuid.UUID `json:"id"`
	RuleID        uuid.UUID `json:"ruleId"`
	QuantityStart int       `json:"quantityStart"`
	QuantityEnd   *int      `json:"quantityEnd,omitempty"`
	Price         []Price   `json:"price"`
}

// EmptyPrice is the placeholder shown when a product has no row for a currency.
func EmptyPrice() Price {
	return Price{Linked: true}
}

// PriceForCurrency returns the row for currencyID, or EmptyPrice.
func PriceForCurrency(currencyID uuid.UUID, prices []Price) Price {
	for _, p := range prices {
		if p.CurrencyID == currencyID {
			return p
		}
	}
	return EmptyPrice()
}

// NormalizeListPrices fixes up list prices before a save. A list price with
// neither amount is dropped; when only one amount is set the other becomes 0.
// Zero counts as unset, matching what the editor submits for cleared fields.
func NormalizeListPrices(prices []Price) {
	for i := range prices {
		lp := prices[i].ListPrice
		if lp == nil {
			continue
		}
		hasGross := amountSet(lp.Gross)
		hasNet := amountSet(lp.Net)
		switch {
		case !hasGross && !hasNet:
			prices[i].ListPrice = nil
		case !hasGross:
			lp.Gross = Amount(0)
		case !hasNet:
			lp.Net = Amount(0)
		}
	}
}

// Amount returns a pointer to v.
func Amount(v float64) *float64 {
	return &v
}

func amountSet(v *float64) bool {
	return v != nil && *v != 0
}

func clonePrices(prices []Price) []Price {
	if prices == nil {
		return nil
	}
	out := make([]Price, len(prices))
	for i, p := range prices {
		out[i] = p
		out[i].Gross = cloneFloat(p.Gross)
		out[i].Net = cloneFloat(p.Net)
		if p.ListPrice != nil {
			lp := *p.ListPrice
			lp.Gross = cloneFloat(p.ListPrice.Gross)
			lp.Net = cloneFloat(p.ListPrice.Net)
			out[i].ListPrice = &lp
		}
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
