package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/entityloader"
	"github.com/rpattn/productadmin/internal/repository"
)

type ctxKey string

const productLoaderKey ctxKey = "productLoader"

// DataLoaderMiddleware attaches a fresh product loader to the request context
func DataLoaderMiddleware(repo repository.ProductRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := entityloader.NewProductLoader(repo)
			ctx := context.WithValue(r.Context(), productLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProductLoaderFromContext retrieves the product loader from context
func ProductLoaderFromContext(ctx context.Context) *entityloader.ProductLoader {
	if l, ok := ctx.Value(productLoaderKey).(*entityloader.ProductLoader); ok {
		return l
	}
	return nil
}

// RequestParents loads parent products through the loader of the current
// request. Outside a request it falls back to a one-off loader.
type RequestParents struct {
	Repo repository.ProductRepository
}

func (p RequestParents) Load(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID) (*domain.Product, error) {
	loader := ProductLoaderFromContext(ctx)
	if loader == nil {
		loader = entityloader.NewProductLoader(p.Repo)
	}
	return loader.Load(ctx, apiCtx, id)
}
