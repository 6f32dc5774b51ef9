package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/productadmin/internal/auth"
	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/export"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
)

type memProducts struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.Product
	order    []uuid.UUID
	searches []criteria.Criteria
	patches  map[uuid.UUID]repository.ProductPatch
	saved    int
}

func newMemProducts(products ...*domain.Product) *memProducts {
	m := &memProducts{items: make(map[uuid.UUID]*domain.Product), patches: make(map[uuid.UUID]repository.ProductPatch)}
	for _, p := range products {
		m.items[p.ID] = p.Clone()
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *memProducts) Search(_ context.Context, _ domain.APIContext, crit criteria.Criteria) (repository.SearchResult[*domain.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, crit)
	out := make([]*domain.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].Clone())
	}
	return repository.SearchResult[*domain.Product]{Items: out, Total: len(out)}, nil
}

func (m *memProducts) Get(_ context.Context, _ domain.APIContext, id uuid.UUID, _ criteria.Criteria) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := p.Clone()
	out.MarkPersisted()
	return out, nil
}

func (m *memProducts) GetByIDs(ctx context.Context, apiCtx domain.APIContext, ids []uuid.UUID) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, id := range ids {
		if p, err := m.Get(ctx, apiCtx, id, criteria.Criteria{}); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) Create(domain.APIContext) *domain.Product { return domain.NewProduct() }

func (m *memProducts) Save(_ context.Context, _ domain.APIContext, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p.ID] = p.Clone()
	m.saved++
	return nil
}

func (m *memProducts) Patch(_ context.Context, _ domain.APIContext, id uuid.UUID, patch repository.ProductPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	m.patches[id] = patch
	return nil
}

func (m *memProducts) HasChanges(p *domain.Product) bool { return p.HasChanges() }

func (m *memProducts) Clone(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, overwrites repository.CloneOverwrites) (*domain.Product, error) {
	source, err := m.Get(ctx, apiCtx, id, criteria.Criteria{})
	if err != nil {
		return nil, err
	}
	dup := overwrites.Apply(source)
	if err := m.Save(ctx, apiCtx, dup); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.order = append(m.order, dup.ID)
	m.mu.Unlock()
	dup.MarkPersisted()
	return dup, nil
}

func (m *memProducts) product(id uuid.UUID) (*domain.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	return p, ok
}

func (m *memProducts) lastSearch() criteria.Criteria {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches[len(m.searches)-1]
}

type static[T any] []T

func (s static[T]) Search(context.Context, domain.APIContext, criteria.Criteria) (repository.SearchResult[T], error) {
	return repository.SearchResult[T]{Items: append([]T(nil), s...), Total: len(s)}, nil
}

type memUserConfigs struct {
	static[domain.UserConfig]
}

func (memUserConfigs) Save(context.Context, domain.APIContext, domain.UserConfig) error { return nil }

type fixedNumbers struct{}

func (fixedNumbers) Reserve(context.Context, string, bool) (string, error) { return "SW10000", nil }

type countingObserver struct {
	mu             sync.Mutex
	opened, closed int
}

func (c *countingObserver) SessionOpened() { c.mu.Lock(); c.opened++; c.mu.Unlock() }
func (c *countingObserver) SessionClosed() { c.mu.Lock(); c.closed++; c.mu.Unlock() }

var (
	systemLanguage = uuid.MustParse("2fbb5fe2-e29a-4d70-aa2e-3b0c4e0d7c1e")
	euro           = domain.Currency{ID: uuid.MustParse("b7d2554b-0ce8-47a1-8f8f-2d4d1d3a4c81"), ISOCode: "EUR", Name: "Euro", IsSystemDefault: true}
)

type fixture struct {
	products *memProducts
	sessions *SessionRegistry
	observer *countingObserver
	router   http.Handler
	user     uuid.UUID
	shirt    *domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := filter.NewRegistry()
	require.NoError(t, err)

	name := "Shirt"
	shirt := domain.NewProduct()
	shirt.ProductNumber = "SW1"
	shirt.Name = &name
	shirt.Stock = 3
	shirt.Price = []domain.Price{{CurrencyID: euro.ID, Gross: domain.Amount(20), Net: domain.Amount(16.81), Linked: true}}

	products := newMemProducts(shirt)
	currencies := static[domain.Currency]{euro}
	observer := &countingObserver{}
	sessions := NewSessionRegistry(detail.Dependencies{
		Products:        products,
		Currencies:      currencies,
		Taxes:           static[domain.Tax]{{ID: uuid.New(), Name: "Standard", TaxRate: 19}},
		CustomFieldSets: static[domain.CustomFieldSet]{},
		FeatureSets:     static[domain.FeatureSet]{},
		UserConfigs:     memUserConfigs{},
		Numbers:         fixedNumbers{},
	}, time.Minute, observer, nil)

	router := NewRouter(Dependencies{
		Products:         products,
		Currencies:       currencies,
		Registry:         registry,
		Sessions:         sessions,
		Export:           export.NewService(products, currencies),
		Numbers:          fixedNumbers{},
		SystemLanguageID: systemLanguage,
	})
	return &fixture{products: products, sessions: sessions, observer: observer, router: router, user: uuid.New(), shirt: shirt}
}

func (f *fixture) do(t *testing.T, method, target, body string, user uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != uuid.Nil {
		req.Header.Set(auth.HeaderUserID, user.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", uuid.Nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	router := NewRouter(Dependencies{Health: func(context.Context) error { return errors.New("db down") }})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRequiresUser(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product", "", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAppliesQuery(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product?active-filter=true&page=2&limit=10&term=shirt&sort=name&dir=asc", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	crit := f.products.lastSearch()
	assert.Equal(t, 2, crit.Page)
	assert.Equal(t, 10, crit.Limit)
	assert.Equal(t, "shirt", crit.Term)

	body := decode[struct {
		Total         int      `json:"total"`
		ActiveFilters []string `json:"activeFilters"`
		Columns       []struct {
			Property string `json:"property"`
		} `json:"columns"`
	}](t, rec)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, []string{"active-filter"}, body.ActiveFilters)
	var props []string
	for _, c := range body.Columns {
		props = append(props, c.Property)
	}
	assert.Contains(t, props, "price-EUR")
}

func TestListRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product?stock-filter=10..5", "", f.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product/filters", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Filters []filter.Definition `json:"filters"`
	}](t, rec)
	require.NotEmpty(t, body.Filters)
	assert.Equal(t, "active-filter", body.Filters[0].Name)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product/export.csv", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, export.FormatCSV.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="products-`)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "Shirt,SW1,"))

	rec = f.do(t, http.MethodGet, "/api/product/export.pdf", "", f.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInlineEdit(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPatch, "/api/product/"+f.shirt.ID.String(), `{"stock": 5}`, f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Notifications []notify.Notification `json:"notifications"`
	}](t, rec)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, notify.KeySaveSuccess, body.Notifications[0].Message)
	require.NotNil(t, f.products.patches[f.shirt.ID].Stock)
	assert.Equal(t, 5, *f.products.patches[f.shirt.ID].Stock)

	rec = f.do(t, http.MethodPatch, "/api/product/not-a-uuid", `{"stock": 5}`, f.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/product-sessions", `{"productId": "`+f.shirt.ID.String()+`"}`, f.user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	opened := decode[sessionResponse](t, rec)
	require.NotNil(t, opened.State.Product)
	assert.Equal(t, "SW1", opened.State.Product.ProductNumber)
	assert.False(t, opened.State.HasChanges)
	base := "/api/product-sessions/" + opened.ID.String()

	rec = f.do(t, http.MethodGet, base, "", uuid.New())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, base+"/product", `{"stock": 12, "id": "`+uuid.NewString()+`"}`, f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[sessionResponse](t, rec)
	assert.Equal(t, 12, updated.State.Product.Stock)
	assert.Equal(t, f.shirt.ID, updated.State.Product.ID)
	assert.True(t, updated.State.HasChanges)

	rec = f.do(t, http.MethodPost, base+"/save", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[sessionResponse](t, rec)
	assert.Equal(t, detail.OutcomeSuccess, saved.Outcome)
	assert.Equal(t, 1, f.products.saved)

	rec = f.do(t, http.MethodDelete, base, "", f.user)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, base, "", f.user)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1, f.observer.opened)
	assert.Equal(t, 1, f.observer.closed)
}

func TestSessionMediaErrors(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product-sessions", `{"productId": "`+f.shirt.ID.String()+`"}`, f.user)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/product-sessions/" + decode[sessionResponse](t, rec).ID.String()

	mediaID := uuid.New()
	body := `{"mediaId": "` + mediaID.String() + `", "url": "/media/a.png"}`
	rec = f.do(t, http.MethodPost, base+"/media", body, f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/media", body, f.user)
	assert.Equal(t, http.StatusConflict, rec.Code)
	dup := decode[errorResponse](t, rec)
	require.Len(t, dup.Notifications, 1)
	assert.Equal(t, notify.KeyMediaDuplicated, dup.Notifications[0].Message)

	rec = f.do(t, http.MethodDelete, base+"/media/"+uuid.NewString(), "", f.user)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSessionSweepClosesIdleSessions(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.sessions.now = func() time.Time { return now }

	apiCtx := domain.NewAPIContext(systemLanguage, f.user)
	s, err := f.sessions.Open(context.Background(), apiCtx, &f.shirt.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = f.sessions.Get(s.ID, f.user)
	require.NoError(t, err)
	assert.Zero(t, f.sessions.Sweep())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, f.sessions.Sweep())
	assert.Zero(t, f.sessions.Len())

	_, err = f.sessions.Get(s.ID, f.user)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, f.observer.closed)
}

func TestRunClosesSessionsOnShutdown(t *testing.T) {
	f := newFixture(t)
	apiCtx := domain.NewAPIContext(systemLanguage, f.user)
	_, err := f.sessions.Open(context.Background(), apiCtx, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sessions.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	assert.Zero(t, f.sessions.Len())
}

func TestListVariantsFiltersByParent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product/"+f.shirt.ID.String()+"/variants?page=1&limit=5", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	crit := f.products.lastSearch()
	require.NotEmpty(t, crit.Filters)
	assert.Equal(t, criteria.Equals("product.parentId", f.shirt.ID), crit.Filters[0])
	assert.Equal(t, 5, crit.Limit)

	rec = f.do(t, http.MethodGet, "/api/product", "", f.user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, criteria.Equals("product.parentId", nil), f.products.lastSearch().Filters[0])

	rec = f.do(t, http.MethodGet, "/api/product/nope/variants", "", f.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateFromList(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/"+f.shirt.ID.String()+"/duplicate", "", f.user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[duplicateResponse](t, rec)
	assert.NotEqual(t, f.shirt.ID, body.ID)
	assert.Equal(t, "SW10000", body.ProductNumber)
	assert.Equal(t, routing.ProductDetail, body.Route.Name)
	assert.Equal(t, body.ID.String(), body.Route.Params["id"])

	copied, ok := f.products.product(body.ID)
	require.True(t, ok)
	assert.Equal(t, "Shirt "+detail.DuplicateNameSuffix, *copied.Name)
	assert.False(t, *copied.Active)
	assert.Equal(t, f.shirt.Price[0].CurrencyID, copied.Price[0].CurrencyID)

	rec = f.do(t, http.MethodPost, "/api/product/"+uuid.NewString()+"/duplicate", "", f.user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	missing := decode[errorResponse](t, rec)
	require.Len(t, missing.Notifications, 1)
	assert.Equal(t, notify.KeyUnspecifiedSaveError, missing.Notifications[0].Message)
}

func TestSessionDuplicate(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product-sessions", `{"productId": "`+f.shirt.ID.String()+`"}`, f.user)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/product-sessions/" + decode[sessionResponse](t, rec).ID.String()

	rec = f.do(t, http.MethodPost, base+"/duplicate", "", f.user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[sessionResponse](t, rec)
	require.NotNil(t, resp.Route)
	assert.Equal(t, routing.ProductDetail, resp.Route.Name)
	assert.NotEqual(t, f.shirt.ID.String(), resp.Route.Params["id"])
	assert.Equal(t, f.shirt.ID, resp.State.Product.ID)

	copiedID, err := uuid.Parse(resp.Route.Params["id"])
	require.NoError(t, err)
	_, ok := f.products.product(copiedID)
	assert.True(t, ok)
}
