package detail

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/domain"
)

// Resource names a sub-resource with its own loading flag.
type Resource string

const (
	ResourceProduct           Resource = "product"
	ResourceParentProduct     Resource = "parentProduct"
	ResourceCurrencies        Resource = "currencies"
	ResourceTaxes             Resource = "taxes"
	ResourceCustomFieldSets   Resource = "customFieldSets"
	ResourceDefaultFeatureSet Resource = "defaultFeatureSet"
	ResourceMedia             Resource = "media"
	ResourceAdvancedMode      Resource = "advancedMode"
)

// Resources lists every tracked resource.
var Resources = []Resource{
	ResourceProduct,
	ResourceParentProduct,
	ResourceCurrencies,
	ResourceTaxes,
	ResourceCustomFieldSets,
	ResourceDefaultFeatureSet,
	ResourceMedia,
	ResourceAdvancedMode,
}

// Store holds the state of one product editing session. Sub-fetches finish
// concurrently, so every access goes through the mutex.
//
// Each session incarnation has a generation. Reset starts a new one and
// commits tagged with an older generation are dropped.
type Store struct {
	mu         sync.RWMutex
	generation uint64

	apiContext          domain.APIContext
	product             *domain.Product
	parentProduct       *domain.Product
	currencies          []domain.Currency
	taxes               []domain.Tax
	customFieldSets     []domain.CustomFieldSet
	defaultFeatureSet   *domain.FeatureSet
	advancedModeSetting domain.UserConfig
	modeSettingsVisible bool
	localMode           bool
	cmsPage             *domain.CmsPage
	seoURLs             []domain.SeoURL
	pendingSeoURLs      []domain.SeoURL
	defaultSeoURL       *domain.SeoURL
	numberPreview       string
	loading             map[Resource]bool
}

// NewStore creates an empty store bound to apiCtx.
func NewStore(apiCtx domain.APIContext) *Store {
	s := &Store{}
	s.resetLocked(apiCtx)
	return s
}

// Reset discards all state, binds the store to apiCtx and returns the
// generation of the new incarnation.
func (s *Store) Reset(apiCtx domain.APIContext) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(apiCtx)
	return s.generation
}

func (s *Store) resetLocked(apiCtx domain.APIContext) {
	s.generation++
	s.apiContext = apiCtx
	s.product = nil
	s.parentProduct = nil
	s.currencies = nil
	s.taxes = nil
	s.customFieldSets = nil
	s.defaultFeatureSet = nil
	s.advancedModeSetting = domain.DefaultAdvancedModeSetting(apiCtx.UserID)
	s.modeSettingsVisible = true
	s.localMode = false
	s.cmsPage = nil
	s.seoURLs = nil
	s.pendingSeoURLs = nil
	s.defaultSeoURL = nil
	s.numberPreview = ""
	s.loading = make(map[Resource]bool, len(Resources))
}

// Generation returns the current incarnation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Commit runs fn under the write lock when gen is still current. It reports
// whether fn ran.
func (s *Store) Commit(gen uint64, fn func(s *Store)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	fn(s)
	return true
}

// Track raises the loading flag of r and returns the function lowering it.
// Lowering is skipped when the store was reset in between, since Reset
// already cleared every flag.
func (s *Store) Track(gen uint64, r Resource) func() {
	s.Commit(gen, func(s *Store) { s.loading[r] = true })
	return func() {
		s.Commit(gen, func(s *Store) { s.loading[r] = false })
	}
}

// The setters below expect to be called through Commit or on a store not
// shared yet; they do not lock.

func (s *Store) SetAPIContext(apiCtx domain.APIContext) { s.apiContext = apiCtx }

func (s *Store) SetProduct(p *domain.Product) { s.product = p }

func (s *Store) SetParentProduct(p *domain.Product) { s.parentProduct = p }

func (s *Store) SetLoading(r Resource, loading bool) { s.loading[r] = loading }

func (s *Store) SetCurrencies(c []domain.Currency) { s.currencies = c }

func (s *Store) SetTaxes(t []domain.Tax) { s.taxes = t }

// SetAttributeSet stores the custom field sets the product form renders.
func (s *Store) SetAttributeSet(sets []domain.CustomFieldSet) { s.customFieldSets = sets }

func (s *Store) SetDefaultFeatureSet(fs *domain.FeatureSet) { s.defaultFeatureSet = fs }

func (s *Store) SetLocalMode(local bool) { s.localMode = local }

func (s *Store) SetAdvancedModeSetting(cfg domain.UserConfig) { s.advancedModeSetting = cfg }

func (s *Store) SetModeSettingsVisible(visible bool) { s.modeSettingsVisible = visible }

func (s *Store) SetCmsPage(page *domain.CmsPage) { s.cmsPage = page }

// SetSeoURLs stores the editable canonical URLs and the default URL used
// for entries left empty.
func (s *Store) SetSeoURLs(urls []domain.SeoURL, def *domain.SeoURL) {
	s.seoURLs = urls
	s.defaultSeoURL = def
}

func (s *Store) SetNumberPreview(number string) { s.numberPreview = number }

// IsLoading reports whether any tracked resource is loading.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoadingLocked()
}

func (s *Store) isLoadingLocked() bool {
	for _, loading := range s.loading {
		if loading {
			return true
		}
	}
	return false
}

// Loading returns a copy of the per-resource flags.
func (s *Store) Loading() map[Resource]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Resource]bool, len(Resources))
	for _, r := range Resources {
		out[r] = s.loading[r]
	}
	return out
}

// IsChild reports whether the product is a variant.
func (s *Store) IsChild() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product.IsVariant()
}

// DefaultCurrency returns the system default currency of the loaded
// collection. Zero or several defaults are an error.
func (s *Store) DefaultCurrency() (domain.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.DefaultCurrency(s.currencies)
}

// ShowModeSetting reports whether the advanced mode cards are configurable.
// Variants inherit their layout and never show them.
func (s *Store) ShowModeSetting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modeSettingsVisible && !s.product.IsVariant()
}

// HasChanges reports whether the working copy differs from the persisted state.
func (s *Store) HasChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product != nil && s.product.HasChanges()
}

// APIContext returns the context the session runs in.
func (s *Store) APIContext() domain.APIContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiContext
}

// Product returns a copy of the working copy, or nil.
func (s *Store) Product() *domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product.Clone()
}

// AdvancedModeSetting returns a copy of the user's mode settings.
func (s *Store) AdvancedModeSetting() domain.UserConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.advancedModeSetting.Clone()
}

// Currencies returns the loaded currencies.
func (s *Store) Currencies() []domain.Currency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Currency(nil), s.currencies...)
}

// View is a point-in-time copy of the store for rendering.
type View struct {
	Product             *domain.Product         `json:"product"`
	ParentProduct       *domain.Product         `json:"parentProduct"`
	Title               string                  `json:"title"`
	IsChild             bool                    `json:"isChild"`
	IsLoading           bool                    `json:"isLoading"`
	Loading             map[Resource]bool       `json:"loading"`
	LocalMode           bool                    `json:"localMode"`
	HasChanges          bool                    `json:"hasChanges"`
	Currencies          []domain.Currency       `json:"currencies"`
	DefaultCurrencyID   *uuid.UUID              `json:"defaultCurrencyId"`
	Taxes               []domain.Tax            `json:"taxes"`
	CustomFieldSets     []domain.CustomFieldSet `json:"customFieldSets"`
	DefaultFeatureSet   *domain.FeatureSet      `json:"defaultFeatureSet"`
	AdvancedModeSetting domain.UserConfig       `json:"advancedModeSetting"`
	DisplaySettings     domain.DisplaySettings  `json:"displaySettings"`
	ShowModeSetting     bool                    `json:"showModeSetting"`
	CmsPage             *domain.CmsPage         `json:"cmsPage,omitempty"`
	SeoURLs             []domain.SeoURL         `json:"seoUrls"`
	LanguageID          uuid.UUID               `json:"languageId"`
}

// TitleHeadline is the translation key shown as the title of a product
// without a name.
const TitleHeadline = "sw-product.detail.textHeadline"

// titleLocked inherits the parent's name for variants only.
func (s *Store) titleLocked() string {
	if s.product.IsVariant() {
		return domain.InheritedTitle(s.product, s.parentProduct)
	}
	return s.product.DisplayName(TitleHeadline)
}

// Snapshot copies the store into a View.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Product:             s.product.Clone(),
		ParentProduct:       s.parentProduct.Clone(),
		Title:               s.titleLocked(),
		IsChild:             s.product.IsVariant(),
		IsLoading:           s.isLoadingLocked(),
		Loading:             make(map[Resource]bool, len(Resources)),
		LocalMode:           s.localMode,
		HasChanges:          s.product != nil && s.product.HasChanges(),
		Currencies:          append([]domain.Currency(nil), s.currencies...),
		Taxes:               append([]domain.Tax(nil), s.taxes...),
		CustomFieldSets:     append([]domain.CustomFieldSet(nil), s.customFieldSets...),
		AdvancedModeSetting: s.advancedModeSetting.Clone(),
		DisplaySettings:     s.advancedModeSetting.Value.DisplaySettings(),
		ShowModeSetting:     s.modeSettingsVisible && !s.product.IsVariant(),
		CmsPage:             s.cmsPage.Clone(),
		SeoURLs:             append([]domain.SeoURL(nil), s.seoURLs...),
		LanguageID:          s.apiContext.LanguageID,
	}
	for _, r := range Resources {
		v.Loading[r] = s.loading[r]
	}
	if s.defaultFeatureSet != nil {
		fs := *s.defaultFeatureSet
		v.DefaultFeatureSet = &fs
	}
	if def, err := domain.DefaultCurrency(s.currencies); err == nil {
		id := def.ID
		v.DefaultCurrencyID = &id
	}
	sort.SliceStable(v.Currencies, func(i, j int) bool { return v.Currencies[i].Position < v.Currencies[j].Position })
	return v
}
