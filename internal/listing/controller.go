// Package listing drives the paginated product list: criteria composition
// from the filter panel, the concurrent search, inline edits and export.
package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
)

// ProductEntity is the filter registry entity of the list.
const ProductEntity = "product"

// DefaultFilters are the filters shown on the product list.
var DefaultFilters = []string{
	"active-filter",
	"product-without-images-filter",
	"release-date-filter",
	"stock-filter",
	"price-filter",
	"manufacturer-filter",
	"visibilities-filter",
	"categories-filter",
	"tags-filter",
}

// ErrUnknownWidget is returned when a filter value names no filter of the list.
var ErrUnknownWidget = errors.New("unknown filter")

// SearchRecorder observes list searches.
type SearchRecorder interface {
	ObserveSearch(entity string, duration time.Duration, err error)
}

// Dependencies are the collaborators of a Controller. Metrics is optional.
type Dependencies struct {
	Products   repository.ProductRepository
	Currencies repository.CurrencyRepository
	Registry   *filter.Registry
	Notifier   notify.Notifier
	Metrics    SearchRecorder
	Logger     *zap.Logger
}

// Options configures a list. A list with a ParentID shows the variants of
// that product instead of the main products.
type Options struct {
	Limit    int
	Filters  map[string]filter.Options
	ParentID *uuid.UUID
}

// Result is one loaded page together with the currencies its price columns
// are derived from. It is replaced as a whole, so the total always matches
// the items.
type Result struct {
	Items      []*domain.Product `json:"items"`
	Total      int               `json:"total"`
	Currencies []domain.Currency `json:"currencies"`
	Columns    []Column          `json:"columns"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// Params is the user-controlled listing state.
type Params struct {
	Page          int                `json:"page"`
	Limit         int                `json:"limit"`
	SortBy        string             `json:"sortBy"`
	SortDirection criteria.Direction `json:"sortDirection"`
	NaturalSort   bool               `json:"naturalSorting"`
	Term          string             `json:"term"`
}

// Controller is the product list. It observes its filter widgets.
type Controller struct {
	deps   Dependencies
	logger *zap.Logger

	mu       sync.Mutex
	parentID *uuid.UUID
	apiCtx   domain.APIContext
	params  Params
	active  filter.ActiveSet
	widgets map[string]*filter.Widget
	defs    []filter.Definition

	generation atomic.Uint64
	loading    atomic.Int32
	publishMu  sync.Mutex
	result     atomic.Pointer[Result]
}

// NewController builds a list with its filter widgets. Unknown filter names
// in opts are a configuration error.
func NewController(deps Dependencies, apiCtx domain.APIContext, opts Options) (*Controller, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	requested := opts.Filters
	if requested == nil {
		requested = make(map[string]filter.Options, len(DefaultFilters))
		for _, name := range DefaultFilters {
			requested[name] = filter.Options{}
		}
	}
	defs, err := deps.Registry.Create(ProductEntity, requested)
	if err != nil {
		return nil, fmt.Errorf("failed to create product filters: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = criteria.DefaultLimit
	}

	c := &Controller{
		deps:     deps,
		logger:   logger.Named("product-list"),
		parentID: opts.ParentID,
		apiCtx:   apiCtx,
		params: Params{
			Page:          1,
			Limit:         limit,
			SortBy:        "productNumber",
			SortDirection: criteria.Desc,
			NaturalSort:   true,
		},
		widgets: make(map[string]*filter.Widget, len(defs)),
		defs:    defs,
	}
	for _, def := range defs {
		c.widgets[def.Name] = filter.NewWidget(def, c)
	}
	c.result.Store(&Result{Items: []*domain.Product{}, Page: 1, Limit: limit})
	return c, nil
}

// Close detaches every widget.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.widgets {
		w.Detach()
	}
}

// FilterUpdated replaces the predicate of a filter and returns to page 1.
func (c *Controller) FilterUpdated(name string, filters []criteria.Filter) {
	c.active.Set(name, filters)
	c.mu.Lock()
	c.params.Page = 1
	c.mu.Unlock()
}

// FilterReset removes the predicate of a filter and returns to page 1.
func (c *Controller) FilterReset(name string) {
	c.active.Reset(name)
	c.mu.Lock()
	c.params.Page = 1
	c.mu.Unlock()
}

// Definitions lists the filters of the list in display order.
func (c *Controller) Definitions() []filter.Definition {
	return append([]filter.Definition(nil), c.defs...)
}

// UpdateCriteria applies filter panel values. Nil values reset their filter.
// Values are validated before any is applied.
func (c *Controller) UpdateCriteria(values map[string]filter.Value) error {
	c.mu.Lock()
	widgets := make(map[string]*filter.Widget, len(values))
	for name := range values {
		w, ok := c.widgets[name]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownWidget, name)
		}
		widgets[name] = w
	}
	c.mu.Unlock()

	for name, v := range values {
		if _, err := widgets[name].Definition().Predicates(v); err != nil {
			return fmt.Errorf("filter %s: %w", name, err)
		}
	}
	for _, def := range c.defs {
		w, ok := widgets[def.Name]
		if !ok {
			continue
		}
		if err := w.Update(values[def.Name]); err != nil {
			return fmt.Errorf("filter %s: %w", def.Name, err)
		}
	}
	c.mu.Lock()
	c.params.Page = 1
	c.mu.Unlock()
	return nil
}

// ResetFilters clears every filter.
func (c *Controller) ResetFilters() {
	for _, def := range c.defs {
		c.widgets[def.Name].Reset()
	}
}

// ActiveFilters names the filters currently applied.
func (c *Controller) ActiveFilters() []string {
	return c.active.Names()
}

// SetParams replaces paging, sorting and term. A changed term returns to page 1.
func (c *Controller) SetParams(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p = c.normalizeLocked(p)
	if p.Term != c.params.Term {
		p.Page = 1
	}
	c.params = p
}

// RestoreParams replaces the listing state as given, keeping the page even
// when the term changes. It restores a list from a saved or requested state.
func (c *Controller) RestoreParams(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = c.normalizeLocked(p)
}

func (c *Controller) normalizeLocked(p Params) Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = c.params.Limit
	}
	if p.SortBy == "" {
		p.SortBy = c.params.SortBy
		p.SortDirection = c.params.SortDirection
		p.NaturalSort = c.params.NaturalSort
	}
	p.SortDirection = criteria.ParseDirection(string(p.SortDirection))
	return p
}

// Params returns the current listing state.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Criteria composes the product search of the current state. Main product
// lists only show products without a parent.
func (c *Controller) Criteria() criteria.Criteria {
	c.mu.Lock()
	p := c.params
	parent := criteria.Equals("product.parentId", nil)
	if c.parentID != nil {
		parent = criteria.Equals("product.parentId", *c.parentID)
	}
	c.mu.Unlock()

	filters := append([]criteria.Filter{parent}, c.active.Filters()...)
	return criteria.ForListing(criteria.ListingParams{
		Page:          p.Page,
		Limit:         p.Limit,
		SortBy:        sortField(p.SortBy),
		SortDirection: p.SortDirection,
		NaturalSort:   p.NaturalSort,
		Term:          p.Term,
		Filters:       filters,
	}).
		AddAssociation("cover").
		AddAssociation("manufacturer")
}

// CurrencyCriteria loads the currencies price columns are built from.
func CurrencyCriteria() criteria.Criteria {
	return criteria.New(1, 500)
}

// IsLoading reports whether a search is running.
func (c *Controller) IsLoading() bool {
	return c.loading.Load() > 0
}

// Result returns the last loaded page.
func (c *Controller) Result() Result {
	return *c.result.Load()
}

// GetList searches products and currencies concurrently and publishes both
// at once. A search overtaken by a newer one is not published.
func (c *Controller) GetList(ctx context.Context) (Result, error) {
	gen := c.generation.Add(1)
	c.loading.Add(1)
	defer c.loading.Add(-1)

	c.mu.Lock()
	apiCtx := c.apiCtx
	params := c.params
	c.mu.Unlock()
	crit := c.Criteria()

	var (
		products   repository.SearchResult[*domain.Product]
		currencies repository.SearchResult[domain.Currency]
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = c.deps.Products.Search(gctx, apiCtx, crit)
		return err
	})
	g.Go(func() error {
		var err error
		currencies, err = c.deps.Currencies.Search(gctx, apiCtx, CurrencyCriteria())
		return err
	})
	err := g.Wait()
	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveSearch(ProductEntity, time.Since(start), err)
	}
	if err != nil {
		c.logger.Warn("failed to load product list", zap.Error(err))
		return c.Result(), fmt.Errorf("failed to load product list: %w", err)
	}

	result := &Result{
		Items:      products.Items,
		Total:      products.Total,
		Currencies: currencies.Items,
		Columns:    Columns(currencies.Items),
		Page:       params.Page,
		Limit:      params.Limit,
	}
	c.publishMu.Lock()
	if c.generation.Load() == gen {
		c.result.Store(result)
	}
	c.publishMu.Unlock()
	return *result, nil
}

// ChangeLanguage switches the content language and reloads.
func (c *Controller) ChangeLanguage(ctx context.Context, languageID uuid.UUID) (Result, error) {
	c.mu.Lock()
	c.apiCtx = c.apiCtx.WithLanguage(languageID)
	c.mu.Unlock()
	return c.GetList(ctx)
}

// InlineEdit saves an isolated change of one row. On failure the list is
// reloaded, dropping the edit, and the error is reported.
func (c *Controller) InlineEdit(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) error {
	if patch.Empty() {
		return nil
	}
	c.mu.Lock()
	apiCtx := c.apiCtx
	c.mu.Unlock()

	if err := c.deps.Products.Patch(ctx, apiCtx, id, patch); err != nil {
		c.logger.Warn("inline edit failed", zap.Stringer("product_id", id), zap.Error(err))
		if _, reloadErr := c.GetList(ctx); reloadErr != nil {
			c.logger.Warn("failed to reload after inline edit", zap.Error(reloadErr))
		}
		c.deps.Notifier.Error(notify.Message(notify.KeySaveErrorRequiredFields))
		return fmt.Errorf("failed to save product %s: %w", id, err)
	}

	c.deps.Notifier.Success(notify.Message(notify.KeySaveSuccess, "name", c.rowName(id, patch)))
	return nil
}

func (c *Controller) rowName(id uuid.UUID, patch repository.ProductPatch) string {
	if patch.Name != nil && *patch.Name != "" {
		return *patch.Name
	}
	for _, p := range c.Result().Items {
		if p.ID == id {
			return p.DisplayName(p.ProductNumber)
		}
	}
	return id.String()
}

// sortField maps a currency column onto the sortable default price.
func sortField(field string) string {
	if isCurrencyColumn(field) {
		return "price"
	}
	return field
}
