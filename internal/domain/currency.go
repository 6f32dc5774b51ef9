package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDefaultCurrency is returned when a loaded currency collection does not
// flag exactly one currency as the system default.
var ErrDefaultCurrency = errors.New("currency collection must contain exactly one system default currency")

// Currency is a sales currency.
type Currency struct {
	ID              uuid.UUID `json:"id"`
	ISOCode         string    `json:"isoCode"`
	Name            string    `json:"name"`
	ShortName       string    `json:"shortName"`
	Symbol          string    `json:"symbol"`
	Factor          float64   `json:"factor"`
	Position        int       `json:"position"`
	IsSystemDefault bool      `json:"isSystemDefault"`
}

// DefaultCurrency returns the single system default currency of currencies.
// An empty collection, no default or several defaults are integrity errors.
func DefaultCurrency(currencies []Currency) (Currency, error) {
	var (
		found Currency
		count int
	)
	for _, c := range currencies {
		if c.IsSystemDefault {
			found = c
			count++
		}
	}
	if count != 1 {
		return Currency{}, fmt.Errorf("%w: found %d of %d", ErrDefaultCurrency, count, len(currencies))
	}
	return found, nil
}
