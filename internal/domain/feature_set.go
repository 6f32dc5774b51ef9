package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultFeatureSetNames are the names a feature set may carry to be picked
// as the default for new products.
var DefaultFeatureSetNames = []string{"Default", "Standard"}

// FeatureSet selects the attributes highlighted on a product page.
type FeatureSet struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
