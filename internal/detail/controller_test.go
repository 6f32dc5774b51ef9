package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
	calls int
}

func (f *fakeSearcher[T]) Search(ctx context.Context, _ domain.APIContext, _ criteria.Criteria) (repository.SearchResult[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return repository.SearchResult[T]{}, f.err
	}
	return repository.SearchResult[T]{Items: append([]T(nil), f.items...), Total: len(f.items)}, nil
}

type fakeUserConfigs struct {
	fakeSearcher[domain.UserConfig]
	saveErr error
	saved   []domain.UserConfig
}

func (f *fakeUserConfigs) Save(_ context.Context, _ domain.APIContext, cfg domain.UserConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cfg)
	return nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	saved    []*domain.Product
	saveErr  error
	blocked  map[uuid.UUID]chan struct{}
	entered  chan uuid.UUID
}

func newFakeProducts(products ...*domain.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[uuid.UUID]*domain.Product), blocked: make(map[uuid.UUID]chan struct{})}
	for _, p := range products {
		f.products[p.ID] = p.Clone()
	}
	return f
}

func (f *fakeProducts) Search(context.Context, domain.APIContext, criteria.Criteria) (repository.SearchResult[*domain.Product], error) {
	return repository.SearchResult[*domain.Product]{}, errors.New("not implemented")
}

func (f *fakeProducts) Get(ctx context.Context, _ domain.APIContext, id uuid.UUID, _ criteria.Criteria) (*domain.Product, error) {
	f.mu.Lock()
	release, blocked := f.blocked[id]
	entered := f.entered
	f.mu.Unlock()

	if blocked {
		if entered != nil {
			entered <- id
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := p.Clone()
	out.MarkPersisted()
	return out, nil
}

func (f *fakeProducts) GetByIDs(ctx context.Context, apiCtx domain.APIContext, ids []uuid.UUID) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, id := range ids {
		p, err := f.Get(ctx, apiCtx, id, criteria.Criteria{})
		if err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Create(domain.APIContext) *domain.Product {
	return domain.NewProduct()
}

func (f *fakeProducts) Save(_ context.Context, _ domain.APIContext, p *domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p.Clone())
	f.products[p.ID] = p.Clone()
	return nil
}

func (f *fakeProducts) Patch(context.Context, domain.APIContext, uuid.UUID, repository.ProductPatch) error {
	return errors.New("not implemented")
}

func (f *fakeProducts) HasChanges(p *domain.Product) bool {
	return p.HasChanges()
}

func (f *fakeProducts) Clone(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, overwrites repository.CloneOverwrites) (*domain.Product, error) {
	source, err := f.Get(ctx, apiCtx, id, criteria.Criteria{})
	if err != nil {
		return nil, err
	}
	dup := overwrites.Apply(source)
	if err := f.Save(ctx, apiCtx, dup); err != nil {
		return nil, err
	}
	dup.MarkPersisted()
	return dup, nil
}

func (f *fakeProducts) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type reserveCall struct {
	entity  string
	preview bool
}

type fakeNumbers struct {
	mu    sync.Mutex
	calls []reserveCall
	next  int
}

func (f *fakeNumbers) Reserve(_ context.Context, entity string, preview bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reserveCall{entity, preview})
	if preview {
		return "SW10000", nil
	}
	f.next++
	return fmt.Sprintf("SW%d", 10000+f.next), nil
}

type fakeSeo struct {
	mu      sync.Mutex
	urls    []domain.SeoURL
	updated []domain.SeoURL
}

func (f *fakeSeo) CanonicalURLs(context.Context, uuid.UUID, uuid.UUID) ([]domain.SeoURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SeoURL(nil), f.urls...), nil
}

func (f *fakeSeo) UpdateCanonicalURL(_ context.Context, u domain.SeoURL, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, u)
	return nil
}

type fixture struct {
	products    *fakeProducts
	currencies  *fakeSearcher[domain.Currency]
	taxes       *fakeSearcher[domain.Tax]
	fieldSets   *fakeSearcher[domain.CustomFieldSet]
	featureSets *fakeSearcher[domain.FeatureSet]
	userConfigs *fakeUserConfigs
	numbers     *fakeNumbers
	seo         *fakeSeo
	notes       *notify.Collector
	router      *routing.Recorder
	euro        domain.Currency
	controller  *Controller
}

func newFixture(t *testing.T, products ...*domain.Product) *fixture {
	t.Helper()
	f := &fixture{
		products:    newFakeProducts(products...),
		euro:        domain.Currency{ID: uuid.New(), ISOCode: "EUR", Name: "Euro", IsSystemDefault: true},
		taxes:       &fakeSearcher[domain.Tax]{items: []domain.Tax{{ID: uuid.New(), Name: "Standard rate", TaxRate: 19}}},
		fieldSets:   &fakeSearcher[domain.CustomFieldSet]{},
		featureSets: &fakeSearcher[domain.FeatureSet]{items: []domain.FeatureSet{{ID: uuid.New(), Name: "Default"}}},
		userConfigs: &fakeUserConfigs{},
		numbers:     &fakeNumbers{},
		seo:         &fakeSeo{},
		notes:       &notify.Collector{},
		router:      routing.NewRecorder(routing.Route{Name: routing.ProductList}),
	}
	f.currencies = &fakeSearcher[domain.Currency]{items: []domain.Currency{
		{ID: uuid.New(), ISOCode: "USD", Name: "US-Dollar"},
		f.euro,
	}}
	f.controller = NewController(Dependencies{
		Products:        f.products,
		Currencies:      f.currencies,
		Taxes:           f.taxes,
		CustomFieldSets: f.fieldSets,
		FeatureSets:     f.featureSets,
		UserConfigs:     f.userConfigs,
		Numbers:         f.numbers,
		SeoURLs:         f.seo,
		Notifier:        f.notes,
		Router:          f.router,
	}, domain.NewAPIContext(uuid.New(), uuid.New()))
	return f
}

func persistedProduct(euroID uuid.UUID) *domain.Product {
	name := "Blue shirt"
	p := domain.NewProduct()
	p.ProductNumber = "SW20000"
	p.Name = &name
	p.Stock = 10
	p.Price = []domain.Price{{CurrencyID: euroID, Gross: domain.Amount(19.99), Net: domain.Amount(16.80), Linked: true}}
	return p
}

func messages(notes []notify.Notification) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Message
	}
	return out
}

func TestCreateStateDefaults(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Open(context.Background(), nil))

	view := f.controller.Store().Snapshot()
	p := view.Product
	require.NotNil(t, p)
	assert.True(t, p.IsNew())
	assert.True(t, view.LocalMode)
	assert.False(t, view.IsLoading)
	assert.Equal(t, "SW10000", p.ProductNumber)
	require.NotNil(t, p.Active)
	assert.True(t, *p.Active)
	assert.Nil(t, p.TaxID)

	require.Len(t, p.Price, 1)
	assert.Equal(t, f.euro.ID, p.Price[0].CurrencyID)
	assert.Nil(t, p.Price[0].Gross)
	assert.Nil(t, p.Price[0].Net)
	assert.True(t, p.Price[0].Linked)

	require.Len(t, p.PurchasePrices, 1)
	assert.Equal(t, f.euro.ID, p.PurchasePrices[0].CurrencyID)
	assert.Equal(t, 0.0, *p.PurchasePrices[0].Gross)
	assert.Equal(t, 0.0, *p.PurchasePrices[0].Net)
	assert.True(t, p.PurchasePrices[0].Linked)

	require.NotNil(t, p.FeatureSetID)
	assert.Equal(t, f.featureSets.items[0].ID, *p.FeatureSetID)
	assert.Equal(t, []reserveCall{{ProductEntity, true}}, f.numbers.calls)
}

func TestCreateStateRequiresSingleDefaultCurrency(t *testing.T) {
	f := newFixture(t)
	f.currencies.items = []domain.Currency{{ID: uuid.New(), ISOCode: "USD"}}

	err := f.controller.Open(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrDefaultCurrency)
	assert.False(t, f.controller.Store().IsLoading())
}

func TestLoadVariantResolvesInheritedTitle(t *testing.T) {
	euroID := uuid.New()
	parent := persistedProduct(euroID)
	variant := domain.NewProduct()
	variant.ProductNumber = "SW20000.1"
	variant.ParentID = &parent.ID

	f := newFixture(t, parent, variant)
	require.NoError(t, f.controller.Open(context.Background(), &variant.ID))

	view := f.controller.Store().Snapshot()
	assert.True(t, view.IsChild)
	assert.False(t, view.ShowModeSetting)
	assert.Equal(t, "Blue shirt", view.Title)
	require.NotNil(t, view.ParentProduct)
	assert.Equal(t, parent.ID, view.ParentProduct.ID)
	assert.Len(t, view.Taxes, 1)
	assert.False(t, view.IsLoading)
}

func TestLoadFailureLowersLoadingFlags(t *testing.T) {
	f := newFixture(t)
	f.currencies.err = errors.New("connection refused")
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p

	err := f.controller.Open(context.Background(), &p.ID)
	require.Error(t, err)

	for r, loading := range f.controller.Store().Loading() {
		assert.False(t, loading, "resource %s still loading", r)
	}
	assert.Contains(t, messages(f.notes.Entries()), notify.KeyLoadError)
}

func TestSaveWithoutChangesSkipsPersistence(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	outcome, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, outcome)
	assert.Zero(t, f.products.saveCount())
	assert.Empty(t, f.notes.Entries())
}

func TestSaveBlockedByPurchaseBounds(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	require.NoError(t, f.controller.UpdateProduct(func(p *domain.Product) error {
		minPurchase, maxPurchase := 5, 3
		p.MinPurchase = &minPurchase
		p.MaxPurchase = &maxPurchase
		return nil
	}))

	outcome, err := f.controller.Save(context.Background())
	require.ErrorIs(t, err, ErrPurchaseBounds)
	assert.Equal(t, OutcomeInvalid, outcome)
	assert.Zero(t, f.products.saveCount())
	assert.Empty(t, f.numbers.calls)
	assert.Equal(t, []string{notify.KeyMinMaxPurchase}, messages(f.notes.Entries()))
}

func TestSaveBlockedByInvalidCustomFields(t *testing.T) {
	f := newFixture(t)
	f.fieldSets.items = []domain.CustomFieldSet{{
		ID: uuid.New(), Name: "shoe", Active: true, Relations: []string{"product"},
		Fields: []domain.CustomField{{Name: "shoe_size", Type: domain.CustomFieldInt, Config: domain.CustomFieldConfig{Required: true}}},
	}}
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	require.NoError(t, f.controller.UpdateProduct(func(p *domain.Product) error {
		p.CustomFields = map[string]any{"shoe_size": "large"}
		return nil
	}))

	outcome, err := f.controller.Save(context.Background())
	require.ErrorIs(t, err, ErrInvalidCustomFields)
	assert.Equal(t, OutcomeInvalid, outcome)
	assert.Zero(t, f.products.saveCount())
	assert.Equal(t, []string{notify.KeySaveErrorRequiredFields}, messages(f.notes.Entries()))
}

func TestSaveNewProductReservesNumberAndNavigates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Open(context.Background(), nil))
	created := f.controller.Store().Product()

	outcome, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	assert.Equal(t, []reserveCall{{ProductEntity, true}, {ProductEntity, false}}, f.numbers.calls)
	require.Equal(t, 1, f.products.saveCount())

	route, ok := f.router.Current()
	require.True(t, ok)
	assert.Equal(t, routing.ProductDetail, route.Name)
	assert.Equal(t, created.ID.String(), route.Params["id"])

	view := f.controller.Store().Snapshot()
	assert.False(t, view.LocalMode)
	assert.False(t, view.Product.IsNew())
	assert.False(t, view.HasChanges)
}

func TestSaveNormalizesListPrices(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	require.NoError(t, f.controller.UpdateProduct(func(p *domain.Product) error {
		p.Price[0].ListPrice = &domain.ListPrice{Gross: domain.Amount(10)}
		return nil
	}))

	outcome, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	saved := f.products.saved[0]
	require.NotNil(t, saved.Price[0].ListPrice)
	assert.Equal(t, 10.0, *saved.Price[0].ListPrice.Gross)
	require.NotNil(t, saved.Price[0].ListPrice.Net)
	assert.Equal(t, 0.0, *saved.Price[0].ListPrice.Net)
}

func TestSaveDuplicateNumberKeepsEdits(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	f.products.saveErr = &repository.SaveError{Errors: []repository.APIError{{
		Code: repository.CodeDuplicateProductNumber,
		Meta: map[string]any{"number": "SW20000"},
	}}}
	require.NoError(t, f.controller.UpdateProduct(func(p *domain.Product) error {
		p.Stock = 42
		return nil
	}))

	outcome, err := f.controller.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)

	notes := f.notes.Entries()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Equal(t, notify.KeySaveErrorDuplicateNumber, notes[0].Message)
	assert.Equal(t, "SW20000", notes[0].Params["number"])

	current := f.controller.Store().Product()
	assert.Equal(t, 42, current.Stock)
	assert.True(t, current.HasChanges())
	assert.False(t, f.controller.Store().IsLoading())
}

func TestSaveGenericErrorNotifiesRequiredFields(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	f.products.saveErr = errors.New("connection reset")
	require.NoError(t, f.controller.UpdateProduct(func(p *domain.Product) error {
		p.Stock = 1
		return nil
	}))

	outcome, err := f.controller.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, []string{notify.KeySaveErrorRequiredFields}, messages(f.notes.Entries()))
}

func TestSaveSeoURLUpdateCountsAsSuccess(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	f.seo.urls = []domain.SeoURL{{ID: uuid.New(), ForeignKey: p.ID, SeoPathInfo: "blue-shirt", IsCanonical: true}}
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	channel := uuid.New()
	f.controller.UpdateSeoURL(&channel, "")

	outcome, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Zero(t, f.products.saveCount())

	require.Len(t, f.seo.updated, 1)
	assert.Equal(t, "blue-shirt", f.seo.updated[0].SeoPathInfo)
	assert.False(t, f.seo.updated[0].IsModified)
	assert.Equal(t, p.ID, f.seo.updated[0].ForeignKey)
}

func TestSaveCopiesCmsSlotOverrides(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))

	slotID := uuid.New()
	f.controller.AssignCmsPage(&domain.CmsPage{ID: uuid.New(), Sections: []domain.CmsSection{{
		Blocks: []domain.CmsBlock{{Slots: []domain.CmsSlot{{ID: slotID, Type: "text"}}}},
	}}})
	require.NoError(t, f.controller.UpdateCmsSlot(slotID, "content", domain.SlotConfigValue{Source: "static", Value: "Hello"}))
	require.ErrorIs(t, f.controller.UpdateCmsSlot(uuid.New(), "content", domain.SlotConfigValue{}), ErrSlotNotFound)

	outcome, err := f.controller.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	require.Equal(t, 1, f.products.saveCount())
	assert.Equal(t, "Hello", f.products.saved[0].SlotConfig[slotID.String()]["content"].Value)
}

func TestAddMediaRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Open(context.Background(), nil))

	mediaID := uuid.New()
	first, err := f.controller.AddMedia(mediaID, "https://cdn.example.com/a.png")
	require.NoError(t, err)

	_, err = f.controller.AddMedia(mediaID, "https://cdn.example.com/a.png")
	require.ErrorIs(t, err, domain.ErrDuplicateMedia)

	p := f.controller.Store().Product()
	assert.Len(t, p.Media, 1)
	require.NotNil(t, p.CoverID)
	assert.Equal(t, first.ID, *p.CoverID)
	assert.Equal(t, []string{notify.KeyMediaDuplicated}, messages(f.notes.Entries()))
	assert.Equal(t, notify.LevelInfo, f.notes.Entries()[0].Level)

	require.NoError(t, f.controller.RemoveMedia(mediaID))
	assert.Nil(t, f.controller.Store().Product().CoverID)
	assert.False(t, f.controller.Store().IsLoading())
}

func TestStaleLoadIsDropped(t *testing.T) {
	f := newFixture(t)
	first := persistedProduct(f.euro.ID)
	second := persistedProduct(f.euro.ID)
	second.ProductNumber = "SW30000"
	f.products.products[first.ID] = first
	f.products.products[second.ID] = second

	release := make(chan struct{})
	f.products.blocked[first.ID] = release
	f.products.entered = make(chan uuid.UUID, 1)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.controller.Open(context.Background(), &first.ID)
	}()

	select {
	case <-f.products.entered:
	case <-time.After(time.Second):
		t.Fatal("first load did not start")
	}

	require.NoError(t, f.controller.Open(context.Background(), &second.ID))
	close(release)
	require.NoError(t, <-firstDone)

	view := f.controller.Store().Snapshot()
	assert.Equal(t, second.ID, view.Product.ID)
	assert.Equal(t, "SW30000", view.Product.ProductNumber)
	assert.False(t, view.IsLoading)
}

func TestChangeLanguageReloadsSession(t *testing.T) {
	f := newFixture(t)
	p := persistedProduct(f.euro.ID)
	f.products.products[p.ID] = p
	require.NoError(t, f.controller.Open(context.Background(), &p.ID))
	genBefore := f.controller.Store().Generation()

	languageID := uuid.New()
	require.NoError(t, f.controller.ChangeLanguage(context.Background(), languageID))

	assert.Greater(t, f.controller.Store().Generation(), genBefore)
	view := f.controller.Store().Snapshot()
	assert.Equal(t, languageID, view.LanguageID)
	assert.Equal(t, p.ID, view.Product.ID)
}

func TestAdvancedModeLoadAndSave(t *testing.T) {
	f := newFixture(t)
	stored := domain.DefaultAdvancedModeSetting(uuid.New())
	stored.Value.AdvancedMode.Enabled = false
	f.userConfigs.items = []domain.UserConfig{stored}
	require.NoError(t, f.controller.Open(context.Background(), nil))

	view := f.controller.Store().Snapshot()
	assert.False(t, view.AdvancedModeSetting.Value.AdvancedMode.Enabled)
	assert.False(t, view.DisplaySettings.ShowSettingPrice)
	assert.True(t, view.DisplaySettings.ShowPropertiesCard)

	value := view.AdvancedModeSetting.Value
	value.AdvancedMode.Enabled = true
	require.NoError(t, f.controller.SaveAdvancedMode(context.Background(), value))
	assert.True(t, f.controller.Store().AdvancedModeSetting().Value.AdvancedMode.Enabled)
	require.Len(t, f.userConfigs.saved, 1)
	assert.Equal(t, domain.AdvancedModeSettingKey, f.userConfigs.saved[0].Key)

	f.userConfigs.saveErr = errors.New("boom")
	require.Error(t, f.controller.SaveAdvancedMode(context.Background(), value))
	assert.Contains(t, messages(f.notes.Entries()), notify.KeyUnspecifiedSaveError)
	assert.False(t, f.controller.Store().Loading()[ResourceAdvancedMode])
}
