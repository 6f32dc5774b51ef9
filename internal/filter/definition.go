package filter

import (
	"fmt"
	"time"

	"github.com/rpattn/productadmin/internal/criteria"
)

// Type identifies the widget family of a filter.
type Type string

const (
	TypeBoolean     Type = "boolean"
	TypeExistence   Type = "existence"
	TypeMultiSelect Type = "multi-select"
	TypeNumberRange Type = "number-range"
	TypeDateRange   Type = "date-range"
)

var dateTypes = map[string]struct{}{
	"time":           {},
	"date":           {},
	"datetime":       {},
	"datetime-local": {},
}

// Options carries the type specific, caller overridable settings of a filter.
// Zero values mean "not set" and fall back to the catalogue template.
type Options struct {
	Property        string   `yaml:"property" json:"property,omitempty"`
	Label           string   `yaml:"label" json:"label,omitempty"`
	Placeholder     string   `yaml:"placeholder" json:"placeholder,omitempty"`
	FromPlaceholder string   `yaml:"from_placeholder" json:"fromPlaceholder,omitempty"`
	ToPlaceholder   string   `yaml:"to_placeholder" json:"toPlaceholder,omitempty"`
	NumberType      string   `yaml:"number_type" json:"numberType,omitempty"`
	Min             *float64 `yaml:"min" json:"min,omitempty"`
	Max             *float64 `yaml:"max" json:"max,omitempty"`
	Step            *float64 `yaml:"step" json:"step,omitempty"`
	Digits          int      `yaml:"digits" json:"digits,omitempty"`
	DateType        string   `yaml:"date_type" json:"dateType,omitempty"`
	Entity          string   `yaml:"entity" json:"entity,omitempty"`
	DisplayPath     bool     `yaml:"display_path" json:"displayPath,omitempty"`
}

// merge returns o with every set field of override applied on top.
func (o Options) merge(override Options) Options {
	if override.Property != "" {
		o.Property = override.Property
	}
	if override.Label != "" {
		o.Label = override.Label
	}
	if override.Placeholder != "" {
		o.Placeholder = override.Placeholder
	}
	if override.FromPlaceholder != "" {
		o.FromPlaceholder = override.FromPlaceholder
	}
	if override.ToPlaceholder != "" {
		o.ToPlaceholder = override.ToPlaceholder
	}
	if override.NumberType != "" {
		o.NumberType = override.NumberType
	}
	if override.Min != nil {
		o.Min = override.Min
	}
	if override.Max != nil {
		o.Max = override.Max
	}
	if override.Step != nil {
		o.Step = override.Step
	}
	if override.Digits != 0 {
		o.Digits = override.Digits
	}
	if override.DateType != "" {
		o.DateType = override.DateType
	}
	if override.Entity != "" {
		o.Entity = override.Entity
	}
	if override.DisplayPath {
		o.DisplayPath = true
	}
	return o
}

// Definition is an immutable, fully resolved filter descriptor.
type Definition struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
	Options
}

// EffectiveDateType restricts the configured date type to the supported set.
func (d Definition) EffectiveDateType() string {
	if _, ok := dateTypes[d.DateType]; ok {
		return d.DateType
	}
	return "date"
}

// Predicates converts a widget value into criteria filters. An inactive value
// yields no filters. The result holds at most one filter.
func (d Definition) Predicates(v Value) ([]criteria.Filter, error) {
	if v == nil || v.State() == StateInactive {
		return nil, nil
	}

	switch d.Type {
	case TypeBoolean:
		b, ok := v.(BoolValue)
		if !ok {
			return nil, d.mismatch(v)
		}
		return []criteria.Filter{criteria.Equals(d.Property, *b.Value)}, nil

	case TypeExistence:
		b, ok := v.(BoolValue)
		if !ok {
			return nil, d.mismatch(v)
		}
		missing := criteria.Equals(d.Property+".id", nil)
		if *b.Value {
			return []criteria.Filter{criteria.Not(criteria.OperatorAnd, missing)}, nil
		}
		return []criteria.Filter{missing}, nil

	case TypeMultiSelect:
		ids, ok := v.(IDsValue)
		if !ok {
			return nil, d.mismatch(v)
		}
		return []criteria.Filter{criteria.EqualsAny(d.Property+".id", ids.IDs)}, nil

	case TypeNumberRange:
		nr, ok := v.(NumberRange)
		if !ok {
			return nil, d.mismatch(v)
		}
		if err := nr.validate(); err != nil {
			return nil, fmt.Errorf("filter %s: %w", d.Name, err)
		}
		params := criteria.RangeParams{}
		if nr.From != nil {
			params.GTE = d.number(*nr.From)
		}
		if nr.To != nil {
			params.LTE = d.number(*nr.To)
		}
		return []criteria.Filter{criteria.Range(d.Property, params)}, nil

	case TypeDateRange:
		dr, ok := v.(DateRange)
		if !ok {
			return nil, d.mismatch(v)
		}
		if err := dr.validate(); err != nil {
			return nil, fmt.Errorf("filter %s: %w", d.Name, err)
		}
		params := criteria.RangeParams{}
		if dr.From != nil {
			params.GTE = dr.From.UTC().Format(time.RFC3339)
		}
		if dr.To != nil {
			to := *dr.To
			if d.EffectiveDateType() == "date" {
				to = endOfDay(to)
			}
			params.LTE = to.UTC().Format(time.RFC3339)
		}
		return []criteria.Filter{criteria.Range(d.Property, params)}, nil
	}

	return nil, fmt.Errorf("filter %s has unsupported type %q", d.Name, d.Type)
}

func (d Definition) number(v float64) any {
	if d.NumberType == "int" {
		return int64(v)
	}
	return v
}

func (d Definition) mismatch(v Value) error {
	return fmt.Errorf("filter %s of type %s cannot take a %T value", d.Name, d.Type, v)
}

func endOfDay(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 23, 59, 59, 0, t.Location())
}
