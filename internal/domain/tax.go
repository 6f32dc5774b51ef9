package domain

import "github.com/google/uuid"

// Tax is a tax rate selectable on a product.
type Tax struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	TaxRate  float64   `json:"taxRate"`
	Position int       `json:"position"`
}
