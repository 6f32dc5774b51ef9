package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/numberrange"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
	"github.com/rpattn/productadmin/internal/seo"
	"github.com/rpattn/productadmin/pkg/validator"
)

// ProductEntity is the number range and SEO entity name of products.
const ProductEntity = "product"

var (
	// ErrNoProduct is returned by operations that need an opened product.
	ErrNoProduct = errors.New("no product opened")
	// ErrSlotNotFound is returned when a CMS slot does not exist on the page.
	ErrSlotNotFound = errors.New("cms slot not found")
	// ErrPurchaseBounds is returned when a save is blocked by inconsistent
	// purchase quantities.
	ErrPurchaseBounds = domain.ErrPurchaseBounds
	// ErrInvalidCustomFields is returned when a save is blocked by custom
	// field values that do not match their sets.
	ErrInvalidCustomFields = validator.ErrInvalidCustomFields
)

// SaveOutcome is the result of a save attempt.
type SaveOutcome string

const (
	// OutcomeSuccess means changes were persisted.
	OutcomeSuccess SaveOutcome = "success"
	// OutcomeEmpty means there was nothing to persist.
	OutcomeEmpty SaveOutcome = "empty"
	// OutcomeInvalid means local validation blocked the save.
	OutcomeInvalid SaveOutcome = "invalid"
	// OutcomeError means the backend rejected the save.
	OutcomeError SaveOutcome = "error"
)

// ParentLoader fetches the parent of a variant.
type ParentLoader interface {
	Load(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID) (*domain.Product, error)
}

// SeoURLService reads and writes canonical product URLs.
type SeoURLService interface {
	CanonicalURLs(ctx context.Context, foreignKey, languageID uuid.UUID) ([]domain.SeoURL, error)
	UpdateCanonicalURL(ctx context.Context, url domain.SeoURL, languageID uuid.UUID) error
}

// SaveRecorder observes save attempts.
type SaveRecorder interface {
	ObserveSave(outcome string, duration time.Duration)
}

// Dependencies are the collaborators of a Controller. Parents and Metrics
// are optional.
type Dependencies struct {
	Products        repository.ProductRepository
	Currencies      repository.CurrencyRepository
	Taxes           repository.TaxRepository
	CustomFieldSets repository.CustomFieldSetRepository
	FeatureSets     repository.FeatureSetRepository
	UserConfigs     repository.UserConfigRepository
	Parents         ParentLoader
	Numbers         numberrange.Reserver
	SeoURLs         SeoURLService
	Notifier        notify.Notifier
	Router          routing.Router
	Metrics         SaveRecorder
	Logger          *zap.Logger
}

// Controller drives the load, create and save lifecycle of one product
// editing session.
type Controller struct {
	deps   Dependencies
	store  *Store
	logger *zap.Logger

	saveMu sync.Mutex
}

// NewController creates a controller whose session runs in apiCtx.
func NewController(deps Dependencies, apiCtx domain.APIContext) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Parents == nil {
		deps.Parents = repositoryParents{products: deps.Products}
	}
	return &Controller{
		deps:   deps,
		store:  NewStore(apiCtx),
		logger: logger.Named("product-detail"),
	}
}

// Store exposes the session state.
func (c *Controller) Store() *Store {
	return c.store
}

// Open starts a new session incarnation. Without productID a new product is
// created, otherwise the product and its collaborators are loaded.
func (c *Controller) Open(ctx context.Context, productID *uuid.UUID) error {
	return c.open(ctx, c.store.APIContext(), productID)
}

// ChangeLanguage reinitialises the session in another content language.
func (c *Controller) ChangeLanguage(ctx context.Context, languageID uuid.UUID) error {
	var productID *uuid.UUID
	if p := c.store.Product(); p != nil && !p.IsNew() {
		id := p.ID
		productID = &id
	}
	return c.open(ctx, c.store.APIContext().WithLanguage(languageID), productID)
}

// Close discards the session state. Pending loads are dropped.
func (c *Controller) Close() {
	c.store.Reset(c.store.APIContext())
}

func (c *Controller) open(ctx context.Context, apiCtx domain.APIContext, productID *uuid.UUID) error {
	if productID == nil {
		apiCtx = apiCtx.WithDefaultLanguage()
	}
	gen := c.store.Reset(apiCtx)

	if productID == nil {
		c.logger.Debug("creating product", zap.Uint64("generation", gen))
		return c.createState(ctx, gen, apiCtx)
	}
	c.logger.Debug("loading product", zap.Stringer("product_id", *productID), zap.Uint64("generation", gen))
	return c.loadAll(ctx, gen, apiCtx, *productID)
}

func (c *Controller) createState(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceProduct)
	defer done()

	product := c.deps.Products.Create(apiCtx)
	active := true
	empty := ""
	product.Active = &active
	product.TaxID = nil
	product.MetaTitle = &empty
	product.AdditionalText = &empty

	number, err := c.deps.Numbers.Reserve(ctx, ProductEntity, true)
	if err != nil {
		return fmt.Errorf("failed to preview product number: %w", err)
	}
	product.ProductNumber = number

	c.store.Commit(gen, func(s *Store) {
		s.SetLocalMode(true)
		s.SetProduct(product)
		s.SetNumberPreview(number)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.loadCurrencies(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadTaxes(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadAttributeSet(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadDefaultFeatureSet(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadAdvancedMode(gctx, gen, apiCtx) })
	if err := g.Wait(); err != nil {
		return err
	}

	var defaultsErr error
	c.store.Commit(gen, func(s *Store) {
		currency, err := domain.DefaultCurrency(s.currencies)
		if err != nil {
			defaultsErr = err
			return
		}
		s.product.Price = []domain.Price{{CurrencyID: currency.ID, Linked: true}}
		s.product.PurchasePrices = []domain.Price{{
			CurrencyID: currency.ID,
			Gross:      domain.Amount(0),
			Net:        domain.Amount(0),
			Linked:     true,
		}}
		if s.defaultFeatureSet != nil {
			id := s.defaultFeatureSet.ID
			s.product.FeatureSetID = &id
		}
	})
	return defaultsErr
}

func (c *Controller) loadAll(ctx context.Context, gen uint64, apiCtx domain.APIContext, productID uuid.UUID) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.loadProduct(gctx, gen, apiCtx, productID) })
	g.Go(func() error { return c.loadCurrencies(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadTaxes(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadAttributeSet(gctx, gen, apiCtx) })
	g.Go(func() error { return c.loadAdvancedMode(gctx, gen, apiCtx) })
	return g.Wait()
}

func (c *Controller) loadProduct(ctx context.Context, gen uint64, apiCtx domain.APIContext, productID uuid.UUID) error {
	done := c.store.Track(gen, ResourceProduct)
	defer done()

	product, err := c.deps.Products.Get(ctx, apiCtx, productID, ProductCriteria())
	if err != nil {
		return c.loadFailed(err, "product")
	}
	c.store.Commit(gen, func(s *Store) { s.SetProduct(product) })

	if err := c.loadParentProduct(ctx, gen, apiCtx, product); err != nil {
		return err
	}
	return c.loadSeoURLs(ctx, gen, apiCtx, product.ID)
}

func (c *Controller) loadParentProduct(ctx context.Context, gen uint64, apiCtx domain.APIContext, product *domain.Product) error {
	if !product.IsVariant() {
		c.store.Commit(gen, func(s *Store) { s.SetParentProduct(nil) })
		return nil
	}

	done := c.store.Track(gen, ResourceParentProduct)
	defer done()

	parent, err := c.deps.Parents.Load(ctx, apiCtx, *product.ParentID)
	if err != nil {
		return c.loadFailed(err, "parent product")
	}
	c.store.Commit(gen, func(s *Store) { s.SetParentProduct(parent) })
	return nil
}

func (c *Controller) loadSeoURLs(ctx context.Context, gen uint64, apiCtx domain.APIContext, productID uuid.UUID) error {
	if c.deps.SeoURLs == nil {
		return nil
	}
	urls, err := c.deps.SeoURLs.CanonicalURLs(ctx, productID, apiCtx.LanguageID)
	if err != nil {
		return c.loadFailed(err, "seo urls")
	}
	def := defaultSeoURL(urls, productID, apiCtx.LanguageID)
	c.store.Commit(gen, func(s *Store) { s.SetSeoURLs(urls, &def) })
	return nil
}

func (c *Controller) loadCurrencies(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceCurrencies)
	defer done()

	result, err := c.deps.Currencies.Search(ctx, apiCtx, CurrencyCriteria())
	if err != nil {
		return c.loadFailed(err, "currencies")
	}
	c.store.Commit(gen, func(s *Store) { s.SetCurrencies(result.Items) })
	return nil
}

func (c *Controller) loadTaxes(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceTaxes)
	defer done()

	result, err := c.deps.Taxes.Search(ctx, apiCtx, TaxCriteria())
	if err != nil {
		return c.loadFailed(err, "taxes")
	}
	c.store.Commit(gen, func(s *Store) { s.SetTaxes(result.Items) })
	return nil
}

func (c *Controller) loadAttributeSet(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceCustomFieldSets)
	defer done()

	result, err := c.deps.CustomFieldSets.Search(ctx, apiCtx, CustomFieldSetCriteria())
	if err != nil {
		return c.loadFailed(err, "custom field sets")
	}
	if err := validator.ValidateSets(result.Items); err != nil {
		c.logger.Warn("inconsistent custom field sets", zap.Error(err))
	}
	c.store.Commit(gen, func(s *Store) { s.SetAttributeSet(result.Items) })
	return nil
}

func (c *Controller) loadDefaultFeatureSet(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceDefaultFeatureSet)
	defer done()

	result, err := c.deps.FeatureSets.Search(ctx, apiCtx, DefaultFeatureSetCriteria())
	if err != nil {
		return c.loadFailed(err, "default feature set")
	}
	fs, ok := result.First()
	c.store.Commit(gen, func(s *Store) {
		if ok {
			s.SetDefaultFeatureSet(&fs)
		}
	})
	return nil
}

func (c *Controller) loadAdvancedMode(ctx context.Context, gen uint64, apiCtx domain.APIContext) error {
	done := c.store.Track(gen, ResourceAdvancedMode)
	defer done()

	result, err := c.deps.UserConfigs.Search(ctx, apiCtx, AdvancedModeCriteria(apiCtx.UserID))
	if err != nil {
		return c.loadFailed(err, "advanced mode setting")
	}
	if cfg, ok := result.First(); ok {
		c.store.Commit(gen, func(s *Store) { s.SetAdvancedModeSetting(cfg) })
	}
	return nil
}

func (c *Controller) loadFailed(err error, what string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Warn("failed to load "+what, zap.Error(err))
	c.deps.Notifier.Error(notify.Message(notify.KeyLoadError, "resource", what))
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// Save validates and persists the working copy. Validation and backend
// failures are reported through the notifier and leave the working copy
// untouched.
func (c *Controller) Save(ctx context.Context) (SaveOutcome, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	start := time.Now()
	outcome, err := c.save(ctx)
	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveSave(string(outcome), time.Since(start))
	}
	return outcome, err
}

func (c *Controller) save(ctx context.Context) (SaveOutcome, error) {
	gen := c.store.Generation()
	apiCtx := c.store.APIContext()

	var (
		product  *domain.Product
		preview  string
		overlays map[string]map[string]domain.SlotConfigValue
		hasCms   bool
		sets     []domain.CustomFieldSet
	)
	c.store.Commit(gen, func(s *Store) {
		product = s.product.Clone()
		preview = s.numberPreview
		sets = s.customFieldSets
		if s.cmsPage != nil {
			hasCms = true
			overlays = s.cmsPage.SlotOverrides()
		}
	})
	if product == nil {
		return OutcomeError, ErrNoProduct
	}

	if err := product.ValidatePurchase(); err != nil {
		c.deps.Notifier.Error(notify.Message(notify.KeyMinMaxPurchase))
		return OutcomeInvalid, err
	}

	checked := validator.NewCustomFieldValidator(ProductEntity).Validate(product.CustomFields, sets)
	if err := checked.Err(); err != nil {
		c.deps.Notifier.Error(notify.Message(notify.KeySaveErrorRequiredFields))
		return OutcomeInvalid, err
	}
	for _, w := range checked.Warnings {
		c.logger.Debug("undeclared custom field", zap.String("field", w.Field))
	}

	product.NormalizeListPrices()

	wasNew := product.IsNew()
	if wasNew && preview != "" && product.ProductNumber == preview {
		number, err := c.deps.Numbers.Reserve(ctx, ProductEntity, false)
		if err != nil {
			c.deps.Notifier.Error(notify.Message(notify.KeySaveErrorRequiredFields))
			return OutcomeError, fmt.Errorf("failed to reserve product number: %w", err)
		}
		product.ProductNumber = number
		c.store.Commit(gen, func(s *Store) {
			if s.product != nil {
				s.product.ProductNumber = number
			}
			s.SetNumberPreview("")
		})
	}

	if hasCms && len(overlays) > 0 {
		product.SlotConfig = overlays
	}

	outcome, err := c.saveProduct(ctx, gen, apiCtx, product)
	if err != nil {
		c.reportSaveError(err, product)
		return OutcomeError, err
	}

	pushed, err := c.pushSeoURLs(ctx, gen, apiCtx, product.ID)
	if err != nil {
		c.reportSaveError(err, product)
		return OutcomeError, err
	}
	if outcome == OutcomeEmpty && pushed > 0 {
		outcome = OutcomeSuccess
	}

	if wasNew && outcome == OutcomeSuccess {
		if err := c.deps.Router.Push(DetailRoute(product.ID)); err != nil {
			c.logger.Warn("failed to navigate to saved product", zap.Error(err))
		}
	}
	return outcome, nil
}

// saveProduct persists product and reloads the session from the database.
func (c *Controller) saveProduct(ctx context.Context, gen uint64, apiCtx domain.APIContext, product *domain.Product) (SaveOutcome, error) {
	if !c.deps.Products.HasChanges(product) {
		c.logger.Debug("nothing to save", zap.Stringer("product_id", product.ID))
		return OutcomeEmpty, nil
	}

	done := c.store.Track(gen, ResourceProduct)
	err := c.deps.Products.Save(ctx, apiCtx, product)
	done()
	if err != nil {
		c.logger.Warn("failed to save product", zap.Stringer("product_id", product.ID), zap.Error(err))
		return OutcomeError, err
	}

	product.MarkPersisted()
	c.store.Commit(gen, func(s *Store) {
		s.SetProduct(product)
		s.SetLocalMode(false)
	})

	if err := c.loadAll(ctx, gen, apiCtx, product.ID); err != nil {
		c.logger.Warn("failed to reload saved product", zap.Stringer("product_id", product.ID), zap.Error(err))
	}
	return OutcomeSuccess, nil
}

func (c *Controller) pushSeoURLs(ctx context.Context, gen uint64, apiCtx domain.APIContext, productID uuid.UUID) (int, error) {
	if c.deps.SeoURLs == nil {
		return 0, nil
	}
	var (
		pending []domain.SeoURL
		def     domain.SeoURL
	)
	c.store.Commit(gen, func(s *Store) {
		pending = append(pending, s.pendingSeoURLs...)
		if s.defaultSeoURL != nil {
			def = *s.defaultSeoURL
		}
	})
	if len(pending) == 0 {
		return 0, nil
	}
	if def.ForeignKey == uuid.Nil {
		def = defaultSeoURL(nil, productID, apiCtx.LanguageID)
	}

	for _, u := range pending {
		u.ForeignKey = productID
		u.PrepareForUpdate(def)
		if err := c.deps.SeoURLs.UpdateCanonicalURL(ctx, u, apiCtx.LanguageID); err != nil {
			return 0, err
		}
	}
	c.store.Commit(gen, func(s *Store) { s.pendingSeoURLs = nil })
	return len(pending), nil
}

func (c *Controller) reportSaveError(err error, product *domain.Product) {
	if saveErr, ok := repository.AsSaveError(err); ok && saveErr.FirstCode() == repository.CodeDuplicateProductNumber {
		number := product.ProductNumber
		if n, ok := saveErr.Errors[0].Meta["number"].(string); ok && n != "" {
			number = n
		}
		c.deps.Notifier.Error(notify.Message(notify.KeySaveErrorDuplicateNumber, "number", number))
		return
	}
	c.deps.Notifier.Error(notify.Message(notify.KeySaveErrorRequiredFields))
}

// UpdateProduct applies fn to the working copy.
func (c *Controller) UpdateProduct(fn func(p *domain.Product) error) error {
	var err error
	c.store.Commit(c.store.Generation(), func(s *Store) {
		if s.product == nil {
			err = ErrNoProduct
			return
		}
		err = fn(s.product)
	})
	return err
}

// AddMedia assigns a media item. A duplicate is reported and rejected
// without changing the product.
func (c *Controller) AddMedia(mediaID uuid.UUID, url string) (domain.ProductMedia, error) {
	gen := c.store.Generation()
	done := c.store.Track(gen, ResourceMedia)
	defer done()

	var added domain.ProductMedia
	err := c.UpdateProduct(func(p *domain.Product) error {
		var err error
		added, err = p.AddMedia(mediaID, url)
		return err
	})
	if errors.Is(err, domain.ErrDuplicateMedia) {
		c.deps.Notifier.Info(notify.Message(notify.KeyMediaDuplicated))
	}
	return added, err
}

// RemoveMedia unassigns a media item.
func (c *Controller) RemoveMedia(mediaID uuid.UUID) error {
	return c.UpdateProduct(func(p *domain.Product) error {
		return p.RemoveMedia(mediaID)
	})
}

// SetCover makes an assigned media item the cover.
func (c *Controller) SetCover(mediaID uuid.UUID) error {
	return c.UpdateProduct(func(p *domain.Product) error {
		return p.SetCover(mediaID)
	})
}

// AssignCmsPage sets the layout whose slot overrides are saved with the product.
func (c *Controller) AssignCmsPage(page *domain.CmsPage) {
	c.store.Commit(c.store.Generation(), func(s *Store) { s.SetCmsPage(page.Clone()) })
}

// UpdateCmsSlot changes one slot config value of the assigned layout.
func (c *Controller) UpdateCmsSlot(slotID uuid.UUID, key string, value domain.SlotConfigValue) error {
	var err error
	c.store.Commit(c.store.Generation(), func(s *Store) {
		if s.cmsPage == nil || !s.cmsPage.SetSlotValue(slotID, key, value) {
			err = fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
		}
	})
	return err
}

// UpdateSeoURL queues a canonical URL change for the next save. An empty
// path falls back to the default URL.
func (c *Controller) UpdateSeoURL(salesChannelID *uuid.UUID, seoPathInfo string) {
	c.store.Commit(c.store.Generation(), func(s *Store) {
		u := domain.SeoURL{SalesChannelID: salesChannelID, SeoPathInfo: seoPathInfo, IsCanonical: true}
		for _, existing := range s.seoURLs {
			if sameChannel(existing.SalesChannelID, salesChannelID) {
				u.ID = existing.ID
				u.PathInfo = existing.PathInfo
				u.RouteName = existing.RouteName
			}
		}
		for i, queued := range s.pendingSeoURLs {
			if sameChannel(queued.SalesChannelID, salesChannelID) {
				s.pendingSeoURLs[i] = u
				return
			}
		}
		s.pendingSeoURLs = append(s.pendingSeoURLs, u)
	})
}

// SaveAdvancedMode stores the user's editor mode settings.
func (c *Controller) SaveAdvancedMode(ctx context.Context, value domain.AdvancedModeValue) error {
	gen := c.store.Generation()
	apiCtx := c.store.APIContext()
	done := c.store.Track(gen, ResourceAdvancedMode)
	defer done()

	cfg := c.store.AdvancedModeSetting()
	cfg.UserID = apiCtx.UserID
	cfg.Key = domain.AdvancedModeSettingKey
	cfg.Value = value

	if err := c.deps.UserConfigs.Save(ctx, apiCtx, cfg); err != nil {
		c.logger.Warn("failed to save advanced mode setting", zap.Error(err))
		c.deps.Notifier.Error(notify.Message(notify.KeyUnspecifiedSaveError))
		return fmt.Errorf("failed to save advanced mode setting: %w", err)
	}
	c.store.Commit(gen, func(s *Store) { s.SetAdvancedModeSetting(cfg) })
	return nil
}

// SelectTab shows the mode setting cards on the tabs they configure.
func (c *Controller) SelectTab(tab string) {
	visible := tab == domain.TabGeneral || tab == domain.TabSpecifications
	c.store.Commit(c.store.Generation(), func(s *Store) { s.SetModeSettingsVisible(visible) })
}

// Back leaves the editor.
func (c *Controller) Back() error {
	return c.deps.Router.Back()
}

func defaultSeoURL(urls []domain.SeoURL, productID, languageID uuid.UUID) domain.SeoURL {
	for _, u := range urls {
		if u.SalesChannelID == nil {
			return u
		}
	}
	return domain.SeoURL{
		LanguageID:  languageID,
		ForeignKey:  productID,
		RouteName:   seo.ProductRoute,
		PathInfo:    "/detail/" + productID.String(),
		SeoPathInfo: "detail/" + productID.String(),
		IsCanonical: true,
	}
}

func sameChannel(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// repositoryParents loads parents straight from the product repository.
type repositoryParents struct {
	products repository.ProductRepository
}

func (r repositoryParents) Load(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID) (*domain.Product, error) {
	return r.products.Get(ctx, apiCtx, id, ProductCriteria())
}
