package domain

import "github.com/google/uuid"

// Manufacturer is the producer a product is attributed to.
type Manufacturer struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
