package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
)

// SearchResult is one page of a search plus the total hit count.
type SearchResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// First returns the first item of the page.
func (r SearchResult[T]) First() (T, bool) {
	var zero T
	if len(r.Items) == 0 {
		return zero, false
	}
	return r.Items[0], true
}

// Searcher resolves a criteria against one entity.
type Searcher[T any] interface {
	Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[T], error)
}

// ProductRepository defines the interface for product operations
type ProductRepository interface {
	Searcher[*domain.Product]
	Get(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, crit criteria.Criteria) (*domain.Product, error)
	GetByIDs(ctx context.Context, apiCtx domain.APIContext, ids []uuid.UUID) ([]*domain.Product, error)
	Create(apiCtx domain.APIContext) *domain.Product
	Save(ctx context.Context, apiCtx domain.APIContext, product *domain.Product) error
	Patch(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, patch ProductPatch) error
	Clone(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, overwrites CloneOverwrites) (*domain.Product, error)
	HasChanges(product *domain.Product) bool
}

// CloneOverwrites are applied to a cloned product. NameSuffix is appended
// to the name of the copy when set.
type CloneOverwrites struct {
	ProductNumber string
	NameSuffix    string
}

// Apply duplicates source with the overwrites applied.
func (o CloneOverwrites) Apply(source *domain.Product) *domain.Product {
	dup := source.Duplicate(o.ProductNumber)
	if o.NameSuffix != "" && dup.Name != nil {
		name := *dup.Name + " " + o.NameSuffix
		dup.Name = &name
	}
	return dup
}

// ProductPatch is an isolated update of single product fields. Nil fields
// are left untouched.
type ProductPatch struct {
	Name   *string        `json:"name,omitempty"`
	Active *bool          `json:"active,omitempty"`
	Stock  *int           `json:"stock,omitempty"`
	Price  []domain.Price `json:"price,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Active == nil && p.Stock == nil && p.Price == nil
}

// CurrencyRepository searches currencies.
type CurrencyRepository interface {
	Searcher[domain.Currency]
}

// TaxRepository searches taxes.
type TaxRepository interface {
	Searcher[domain.Tax]
}

// CustomFieldSetRepository searches custom field sets with their fields.
type CustomFieldSetRepository interface {
	Searcher[domain.CustomFieldSet]
}

// FeatureSetRepository searches product feature sets.
type FeatureSetRepository interface {
	Searcher[domain.FeatureSet]
}

// UserConfigRepository reads and stores per-user preferences.
type UserConfigRepository interface {
	Searcher[domain.UserConfig]
	Save(ctx context.Context, apiCtx domain.APIContext, cfg domain.UserConfig) error
}
