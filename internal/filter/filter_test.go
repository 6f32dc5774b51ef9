package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/productadmin/internal/criteria"
)

type recordingObserver struct {
	set    ActiveSet
	events []string
}

func (o *recordingObserver) FilterUpdated(name string, filters []criteria.Filter) {
	o.events = append(o.events, "update:"+name)
	o.set.Set(name, filters)
}

func (o *recordingObserver) FilterReset(name string) {
	o.events = append(o.events, "reset:"+name)
	o.set.Reset(name)
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func ptr[T any](v T) *T { return &v }

func TestRegistryCreateAppliesOverridesInCatalogueOrder(t *testing.T) {
	r := mustRegistry(t)

	defs, err := r.Create("product", map[string]Options{
		"price-filter":  {Label: "Price (gross)", FromPlaceholder: "min"},
		"active-filter": {Label: "Is active", Placeholder: "choose"},
	})
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "active-filter", defs[0].Name)
	assert.Equal(t, TypeBoolean, defs[0].Type)
	assert.Equal(t, "active", defs[0].Property)
	assert.Equal(t, "Is active", defs[0].Label)
	assert.Equal(t, "choose", defs[0].Placeholder)

	assert.Equal(t, "price-filter", defs[1].Name)
	assert.Equal(t, "Price (gross)", defs[1].Label)
	assert.Equal(t, "min", defs[1].FromPlaceholder)
	assert.Equal(t, "To", defs[1].ToPlaceholder)
	assert.Equal(t, 20, defs[1].Digits)
	require.NotNil(t, defs[1].Min)
	assert.Equal(t, 0.0, *defs[1].Min)
}

func TestRegistryRejectsUnknownNames(t *testing.T) {
	r := mustRegistry(t)

	_, err := r.CreateNamed("product", "active-filter", "colour-filter")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFilter))
	assert.Contains(t, err.Error(), "colour-filter")

	_, err = r.CreateNamed("order", "active-filter")
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestLoadRegistryValidatesCatalogue(t *testing.T) {
	_, err := LoadRegistry([]byte(`
entities:
  product:
    - name: a
      type: boolean
      property: active
    - name: a
      type: boolean
      property: active
`))
	require.Error(t, err)

	_, err = LoadRegistry([]byte(`
entities:
  product:
    - name: weird
      type: slider
      property: x
`))
	require.Error(t, err)
}

func TestDateWidgetTransitions(t *testing.T) {
	r := mustRegistry(t)
	defs, err := r.CreateNamed("product", "release-date-filter")
	require.NoError(t, err)

	obs := &recordingObserver{}
	w := NewWidget(defs[0], obs)
	assert.Equal(t, StateInactive, w.State())

	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.Update(DateRange{From: &from}))
	assert.Equal(t, StatePartiallyEntered, w.State())
	require.Equal(t, 1, obs.set.Len())
	filters := obs.set.Filters()
	assert.Equal(t, criteria.FilterRange, filters[0].Type)
	assert.Equal(t, "releaseDate", filters[0].Field)
	assert.Equal(t, "2024-01-01T10:00:00Z", filters[0].Params.GTE)
	assert.Nil(t, filters[0].Params.LTE)

	to := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Update(DateRange{From: &from, To: &to}))
	assert.Equal(t, StateActive, w.State())
	require.Equal(t, 1, obs.set.Len(), "same filter name must replace its predicate")
	assert.Equal(t, "2024-02-01T12:00:00Z", obs.set.Filters()[0].Params.LTE)

	require.NoError(t, w.Update(DateRange{}))
	assert.Equal(t, StateInactive, w.State())
	assert.Equal(t, 0, obs.set.Len())

	w.Reset()
	w.Reset()
	assert.Equal(t, 0, obs.set.Len())
	assert.Equal(t, []string{
		"update:release-date-filter",
		"update:release-date-filter",
		"reset:release-date-filter",
		"reset:release-date-filter",
		"reset:release-date-filter",
	}, obs.events)
}

func TestDateWidgetRejectsInvertedRange(t *testing.T) {
	def := Definition{Name: "release-date-filter", Type: TypeDateRange, Options: Options{Property: "releaseDate"}}
	obs := &recordingObserver{}
	w := NewWidget(def, obs)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	err := w.Update(DateRange{From: &from, To: &to})
	require.ErrorIs(t, err, ErrInvertedRange)
	assert.Empty(t, obs.events)
	assert.Equal(t, StateInactive, w.State())
}

func TestDateOnlyUpperBoundExtendsToEndOfDay(t *testing.T) {
	def := Definition{Name: "d", Type: TypeDateRange, Options: Options{Property: "releaseDate", DateType: "unsupported"}}
	assert.Equal(t, "date", def.EffectiveDateType())

	to := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	filters, err := def.Predicates(DateRange{To: &to})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-04T23:59:59Z", filters[0].Params.LTE)
}

func TestPredicatesPerType(t *testing.T) {
	r := mustRegistry(t)
	defs, err := r.CreateNamed("product", "active-filter", "product-without-images-filter", "stock-filter", "manufacturer-filter")
	require.NoError(t, err)
	byName := map[string]Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}

	got, err := byName["active-filter"].Predicates(BoolValue{Value: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []criteria.Filter{criteria.Equals("active", false)}, got)

	got, err = byName["product-without-images-filter"].Predicates(BoolValue{Value: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []criteria.Filter{criteria.Equals("media.id", nil)}, got)

	got, err = byName["product-without-images-filter"].Predicates(BoolValue{Value: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, criteria.FilterNot, got[0].Type)

	got, err = byName["stock-filter"].Predicates(NumberRange{From: ptr(2.0), To: ptr(9.0)})
	require.NoError(t, err)
	assert.Equal(t, criteria.RangeParams{GTE: int64(2), LTE: int64(9)}, got[0].Params)

	got, err = byName["manufacturer-filter"].Predicates(IDsValue{IDs: []string{"m1", "m2"}})
	require.NoError(t, err)
	assert.Equal(t, "manufacturer.id", got[0].Field)
	assert.Equal(t, []any{"m1", "m2"}, got[0].Values)

	got, err = byName["manufacturer-filter"].Predicates(IDsValue{})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = byName["stock-filter"].Predicates(BoolValue{Value: ptr(true)})
	require.Error(t, err)
}

func TestActiveSetKeepsOnePredicatePerName(t *testing.T) {
	var s ActiveSet
	s.Set("a", []criteria.Filter{criteria.Equals("active", true)})
	s.Set("b", []criteria.Filter{criteria.Equals("stock", 1), criteria.Equals("stock", 2)})
	s.Set("a", []criteria.Filter{criteria.Equals("active", false)})

	assert.Equal(t, []string{"a", "b"}, s.Names())
	filters := s.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, false, filters[0].Value)
	assert.Equal(t, criteria.FilterMulti, filters[1].Type)

	s.Set("a", nil)
	assert.False(t, s.Has("a"))
	assert.False(t, s.Reset("a"))
	assert.True(t, s.Reset("b"))
	assert.Equal(t, 0, s.Len())
}

func TestParseValue(t *testing.T) {
	r := mustRegistry(t)
	defs, err := r.CreateNamed("product", "active-filter", "price-filter", "tags-filter", "release-date-filter")
	require.NoError(t, err)
	byName := map[string]Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}

	v, err := ParseValue(byName["active-filter"], "true")
	require.NoError(t, err)
	assert.Equal(t, StateActive, v.State())

	v, err = ParseValue(byName["active-filter"], "")
	require.NoError(t, err)
	assert.Equal(t, StateInactive, v.State())

	v, err = ParseValue(byName["price-filter"], "10.5..20")
	require.NoError(t, err)
	nr := v.(NumberRange)
	assert.Equal(t, 10.5, *nr.From)
	assert.Equal(t, 20.0, *nr.To)

	v, err = ParseValue(byName["price-filter"], "..20")
	require.NoError(t, err)
	assert.Equal(t, StatePartiallyEntered, v.State())

	_, err = ParseValue(byName["price-filter"], "abc")
	require.Error(t, err)

	v, err = ParseValue(byName["release-date-filter"], "2024-01-01..2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, StateActive, v.State())

	v, err = ParseValue(byName["tags-filter"], " t1, ,t2 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, v.(IDsValue).IDs)
}
