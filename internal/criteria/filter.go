package criteria

import (
	"errors"
	"fmt"
	"strings"
)

// FilterType enumerates supported predicate kinds.
type FilterType string

const (
	FilterEquals    FilterType = "equals"
	FilterEqualsAny FilterType = "equalsAny"
	FilterRange     FilterType = "range"
	FilterContains  FilterType = "contains"
	FilterMulti     FilterType = "multi"
	FilterNot       FilterType = "not"
)

// Operator joins the children of multi and not filters.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// RangeParams bounds a range filter. Nil bounds are open.
type RangeParams struct {
	GTE any `json:"gte,omitempty"`
	LTE any `json:"lte,omitempty"`
	GT  any `json:"gt,omitempty"`
	LT  any `json:"lt,omitempty"`
}

// Empty reports whether no bound is set.
func (r RangeParams) Empty() bool {
	return r.GTE == nil && r.LTE == nil && r.GT == nil && r.LT == nil
}

// Filter is a single predicate or a group of predicates.
type Filter struct {
	Type     FilterType  `json:"type"`
	Field    string      `json:"field,omitempty"`
	Value    any         `json:"value,omitempty"`
	Values   []any       `json:"values,omitempty"`
	Params   RangeParams `json:"parameters,omitempty"`
	Operator Operator    `json:"operator,omitempty"`
	Queries  []Filter    `json:"queries,omitempty"`
}

// Equals matches field = value. A nil value matches missing values.
func Equals(field string, value any) Filter {
	return Filter{Type: FilterEquals, Field: field, Value: value}
}

// EqualsAny matches when field equals one of values.
func EqualsAny[T any](field string, values []T) Filter {
	converted := make([]any, len(values))
	for i, v := range values {
		converted[i] = v
	}
	return Filter{Type: FilterEqualsAny, Field: field, Values: converted}
}

// Range matches field against the given bounds.
func Range(field string, params RangeParams) Filter {
	return Filter{Type: FilterRange, Field: field, Params: params}
}

// Contains matches a substring of field.
func Contains(field string, value string) Filter {
	return Filter{Type: FilterContains, Field: field, Value: value}
}

// Multi groups filters with the given operator.
func Multi(op Operator, filters ...Filter) Filter {
	return Filter{Type: FilterMulti, Operator: op, Queries: cloneFilters(filters)}
}

// Not negates the group of filters joined by op.
func Not(op Operator, filters ...Filter) Filter {
	return Filter{Type: FilterNot, Operator: op, Queries: cloneFilters(filters)}
}

// Fields returns every field referenced by the filter, depth first.
func (f Filter) Fields() []string {
	if f.Type == FilterMulti || f.Type == FilterNot {
		var fields []string
		for _, q := range f.Queries {
			fields = append(fields, q.Fields()...)
		}
		return fields
	}
	return []string{f.Field}
}

// Validate checks the filter is well formed.
func (f Filter) Validate() error {
	switch f.Type {
	case FilterEquals, FilterContains:
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%s filter requires a field", f.Type)
		}
	case FilterEqualsAny:
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%s filter requires a field", f.Type)
		}
		if len(f.Values) == 0 {
			return fmt.Errorf("%s filter on %s requires values", f.Type, f.Field)
		}
	case FilterRange:
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%s filter requires a field", f.Type)
		}
		if f.Params.Empty() {
			return fmt.Errorf("range filter on %s has no bounds", f.Field)
		}
	case FilterMulti, FilterNot:
		if f.Operator != OperatorAnd && f.Operator != OperatorOr {
			return fmt.Errorf("%s filter has unsupported operator %q", f.Type, f.Operator)
		}
		if len(f.Queries) == 0 {
			return fmt.Errorf("%s filter requires at least one query", f.Type)
		}
		var errs []error
		for _, q := range f.Queries {
			if err := q.Validate(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unknown filter type %q", f.Type)
	}
	return nil
}

func (f Filter) clone() Filter {
	next := f
	if len(f.Values) > 0 {
		next.Values = append([]any(nil), f.Values...)
	}
	next.Queries = cloneFilters(f.Queries)
	return next
}

func cloneFilters(filters []Filter) []Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = f.clone()
	}
	return out
}
