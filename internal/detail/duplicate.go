package detail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/numberrange"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
)

// DuplicateNameSuffix is appended to the name of a duplicated product.
const DuplicateNameSuffix = "Copy"

// Duplicator copies saved products under a freshly reserved number.
type Duplicator struct {
	Products repository.ProductRepository
	Numbers  numberrange.Reserver
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Duplicate clones the product id and returns the copy together with the
// detail route of the copy.
func (d Duplicator) Duplicate(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID) (*domain.Product, routing.Route, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	number, err := d.Numbers.Reserve(ctx, ProductEntity, false)
	if err != nil {
		d.Notifier.Error(notify.Message(notify.KeyUnspecifiedSaveError))
		return nil, routing.Route{}, fmt.Errorf("failed to reserve product number: %w", err)
	}

	dup, err := d.Products.Clone(ctx, apiCtx, id, repository.CloneOverwrites{
		ProductNumber: number,
		NameSuffix:    DuplicateNameSuffix,
	})
	if err != nil {
		logger.Warn("failed to duplicate product", zap.Stringer("product_id", id), zap.Error(err))
		if saveErr, ok := repository.AsSaveError(err); ok && saveErr.FirstCode() == repository.CodeDuplicateProductNumber {
			d.Notifier.Error(notify.Message(notify.KeySaveErrorDuplicateNumber, "number", number))
		} else {
			d.Notifier.Error(notify.Message(notify.KeyUnspecifiedSaveError))
		}
		return nil, routing.Route{}, fmt.Errorf("failed to duplicate product %s: %w", id, err)
	}

	logger.Info("duplicated product",
		zap.Stringer("product_id", id),
		zap.Stringer("duplicate_id", dup.ID),
		zap.String("product_number", number))
	return dup, DetailRoute(dup.ID), nil
}

// DetailRoute is the detail view of product id.
func DetailRoute(id uuid.UUID) routing.Route {
	return routing.Route{Name: routing.ProductDetail, Params: map[string]string{"id": id.String()}}
}

// Duplicate copies the opened product and navigates to the copy. Unsaved
// changes are not part of the copy.
func (c *Controller) Duplicate(ctx context.Context) (*domain.Product, error) {
	product := c.store.Product()
	if product == nil || product.IsNew() {
		return nil, ErrNoProduct
	}

	dup, route, err := Duplicator{
		Products: c.deps.Products,
		Numbers:  c.deps.Numbers,
		Notifier: c.deps.Notifier,
		Logger:   c.logger,
	}.Duplicate(ctx, c.store.APIContext(), product.ID)
	if err != nil {
		return nil, err
	}
	if err := c.deps.Router.Push(route); err != nil {
		c.logger.Warn("failed to navigate to duplicated product", zap.Error(err))
	}
	return dup, nil
}
