package detail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
)

func TestDuplicateNavigatesToCopy(t *testing.T) {
	f := newFixture(t)
	source := persistedProduct(f.euro.ID)
	f.products.products[source.ID] = source
	require.NoError(t, f.controller.Open(context.Background(), &source.ID))

	dup, err := f.controller.Duplicate(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, dup.ID)
	assert.Equal(t, "SW10001", dup.ProductNumber)
	assert.Equal(t, "Blue shirt "+DuplicateNameSuffix, *dup.Name)
	assert.False(t, *dup.Active)
	assert.Equal(t, []reserveCall{{ProductEntity, false}}, f.numbers.calls)
	require.Equal(t, 1, f.products.saveCount())
	assert.Equal(t, dup.ID, f.products.saved[0].ID)

	route, ok := f.router.Current()
	require.True(t, ok)
	assert.Equal(t, routing.ProductDetail, route.Name)
	assert.Equal(t, dup.ID.String(), route.Params["id"])

	assert.Equal(t, source.ID, f.controller.Store().Product().ID, "the session stays on the source product")
}

func TestDuplicateRequiresSavedProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Duplicate(context.Background())
	require.ErrorIs(t, err, ErrNoProduct)

	require.NoError(t, f.controller.Open(context.Background(), nil))
	_, err = f.controller.Duplicate(context.Background())
	require.ErrorIs(t, err, ErrNoProduct)
	assert.Zero(t, f.products.saveCount())
}

func TestDuplicateReportsDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	source := persistedProduct(f.euro.ID)
	f.products.products[source.ID] = source
	require.NoError(t, f.controller.Open(context.Background(), &source.ID))
	f.notes.Drain()
	f.products.saveErr = &repository.SaveError{Errors: []repository.APIError{{Code: repository.CodeDuplicateProductNumber}}}

	_, err := f.controller.Duplicate(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{notify.KeySaveErrorDuplicateNumber}, messages(f.notes.Drain()))

	route, _ := f.router.Current()
	assert.Equal(t, routing.ProductList, route.Name)
}
