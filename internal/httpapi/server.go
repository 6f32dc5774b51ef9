// Package httpapi hosts the product list and the product editing sessions
// behind a chi router.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/export"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/listing"
	"github.com/rpattn/productadmin/internal/middleware"
	"github.com/rpattn/productadmin/internal/numberrange"
	"github.com/rpattn/productadmin/internal/repository"
)

// Observer collects request, search and session metrics.
type Observer interface {
	middleware.RequestRecorder
	listing.SearchRecorder
	Handler() http.Handler
}

// ListingOptions configures the product list endpoints.
type ListingOptions struct {
	Limit   int
	Filters []string
}

// Dependencies are the collaborators of the router. Import, Metrics and
// Health are optional. Without Numbers products cannot be duplicated from
// the list.
type Dependencies struct {
	Products         repository.ProductRepository
	Currencies       repository.CurrencyRepository
	Registry         *filter.Registry
	Sessions         *SessionRegistry
	Export           *export.Service
	Import           http.Handler
	Numbers          numberrange.Reserver
	Metrics          Observer
	Health           func(ctx context.Context) error
	Listing          ListingOptions
	SystemLanguageID uuid.UUID
	AllowedOrigins   []string
	Logger           *zap.Logger
}

type handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewRouter wires every endpoint.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{deps: deps, logger: logger.Named("http")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(h.logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIContext(deps.SystemLanguageID))
		r.Use(middleware.DataLoaderMiddleware(deps.Products))

		r.Get("/product", h.listProducts)
		r.Get("/product/filters", h.listFilters)
		r.Get("/product/export.{format}", h.exportProducts)
		r.Patch("/product/{id}", h.inlineEdit)
		r.Get("/product/{id}/variants", h.listVariants)
		if deps.Numbers != nil {
			r.Post("/product/{id}/duplicate", h.duplicateProduct)
		}
		if deps.Import != nil {
			r.Method(http.MethodPost, "/product/import", deps.Import)
		}

		r.Route("/product-sessions", func(r chi.Router) {
			r.Post("/", h.openSession)
			r.Route("/{sid}", func(r chi.Router) {
				r.Get("/", h.sessionState)
				r.Delete("/", h.closeSession)
				r.Patch("/product", h.updateProduct)
				r.Post("/media", h.addMedia)
				r.Delete("/media/{mediaId}", h.removeMedia)
				r.Put("/cover/{mediaId}", h.setCover)
				r.Put("/cms-slots/{slotId}", h.updateCmsSlot)
				r.Put("/seo-urls", h.updateSeoURL)
				r.Put("/tab", h.selectTab)
				r.Put("/language", h.changeLanguage)
				r.Post("/save", h.save)
				r.Post("/duplicate", h.duplicateSession)
				r.Post("/back", h.back)
				r.Get("/advanced-mode", h.advancedMode)
				r.Put("/advanced-mode", h.saveAdvancedMode)
			})
		})
	})

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
	}).Handler(r)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
