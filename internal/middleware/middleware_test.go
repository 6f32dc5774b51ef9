package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rpattn/productadmin/internal/auth"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/repository"
)

type observed struct {
	method, route string
	status        int
}

type recorder struct {
	mu   sync.Mutex
	seen []observed
}

func (r *recorder) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observed{method, route, status})
}

func TestLoggingAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &recorder{}

	router := chi.NewRouter()
	router.Use(Logging(zap.New(core)), Metrics(rec))
	router.Get("/api/product/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/product/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, []observed{
		{"GET", "/api/product/{id}", http.StatusTeapot},
		{"GET", "/boom", http.StatusInternalServerError},
	}, rec.seen)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, "/api/product/abc", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestAPIContextMiddleware(t *testing.T) {
	system := uuid.New()
	var got domain.APIContext
	handler := APIContext(system)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.APIContextFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user := uuid.New()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(auth.HeaderUserID, user.String())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, system, got.LanguageID)
}

type parentRepo struct {
	repository.ProductRepository
	parent *domain.Product
	calls  int
}

func (p *parentRepo) GetByIDs(context.Context, domain.APIContext, []uuid.UUID) ([]*domain.Product, error) {
	p.calls++
	return []*domain.Product{p.parent}, nil
}

func TestRequestParentsUsesRequestLoader(t *testing.T) {
	repo := &parentRepo{parent: domain.NewProduct()}
	parents := RequestParents{Repo: repo}
	apiCtx := domain.NewAPIContext(uuid.New(), uuid.New())

	handler := DataLoaderMiddleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, ProductLoaderFromContext(r.Context()))
		for i := 0; i < 2; i++ {
			p, err := parents.Load(r.Context(), apiCtx, repo.parent.ID)
			require.NoError(t, err)
			assert.Equal(t, repo.parent.ID, p.ID)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 1, repo.calls)

	assert.Nil(t, ProductLoaderFromContext(context.Background()))
	_, err := parents.Load(context.Background(), apiCtx, repo.parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}
