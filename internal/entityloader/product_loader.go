package entityloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/repository"
)

// ProductLoader batches product lookups by id. Lookups are cached for the
// lifetime of the loader, so it is meant to live for one request.
type ProductLoader struct {
	repo repository.ProductRepository

	mu      sync.Mutex
	loaders map[domain.APIContext]*dataloader.Loader
}

func NewProductLoader(repo repository.ProductRepository) *ProductLoader {
	return &ProductLoader{repo: repo, loaders: make(map[domain.APIContext]*dataloader.Loader)}
}

// loader returns the batched loader for one language scope.
func (l *ProductLoader) loader(apiCtx domain.APIContext) *dataloader.Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	if loader, ok := l.loaders[apiCtx]; ok {
		return loader
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid UUID: %w", err))
			}
			ids[i] = id
		}

		products, err := l.repo.GetByIDs(ctx, apiCtx, ids)
		if err != nil {
			return errorResults(len(keys), err)
		}

		productMap := make(map[uuid.UUID]*domain.Product, len(products))
		for _, p := range products {
			productMap[p.ID] = p
		}

		// Results follow the order of keys.
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if p, ok := productMap[id]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("product %s: %w", id, repository.ErrNotFound)}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	l.loaders[apiCtx] = loader
	return loader
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// Load returns a private copy of the product with id.
func (l *ProductLoader) Load(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID) (*domain.Product, error) {
	data, err := l.loader(apiCtx).Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return nil, err
	}
	return data.(*domain.Product).Clone(), nil
}

// LoadMany returns the products with ids in order. Missing ids fail the call.
func (l *ProductLoader) LoadMany(ctx context.Context, apiCtx domain.APIContext, ids []uuid.UUID) ([]*domain.Product, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}
	data, errs := l.loader(apiCtx).LoadMany(ctx, keys)()
	out := make([]*domain.Product, len(ids))
	for i := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		out[i] = data[i].(*domain.Product).Clone()
	}
	return out, nil
}
