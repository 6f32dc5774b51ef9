package filter

import (
	"errors"
	"time"
)

// State is the lifecycle position of a filter widget.
type State int

const (
	StateInactive State = iota
	StatePartiallyEntered
	StateActive
)

func (s State) String() string {
	switch s {
	case StatePartiallyEntered:
		return "partially-entered"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// ErrInvertedRange is returned when a range's lower bound exceeds its upper bound.
var ErrInvertedRange = errors.New("range start is after range end")

// Value is the mutable UI state held by one filter widget.
type Value interface {
	State() State
}

// BoolValue backs boolean and existence filters. A nil Value is inactive.
type BoolValue struct {
	Value *bool
}

func (v BoolValue) State() State {
	if v.Value == nil {
		return StateInactive
	}
	return StateActive
}

// IDsValue backs multi-select filters.
type IDsValue struct {
	IDs []string
}

func (v IDsValue) State() State {
	if len(v.IDs) == 0 {
		return StateInactive
	}
	return StateActive
}

// NumberRange backs numeric range filters. Either bound may be open.
type NumberRange struct {
	From *float64
	To   *float64
}

func (v NumberRange) State() State {
	return boundsState(v.From != nil, v.To != nil)
}

func (v NumberRange) validate() error {
	if v.From != nil && v.To != nil && *v.From > *v.To {
		return ErrInvertedRange
	}
	return nil
}

// DateRange backs date filters. With both bounds nil the filter is inactive.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (v DateRange) State() State {
	return boundsState(v.From != nil, v.To != nil)
}

func (v DateRange) validate() error {
	if v.From != nil && v.To != nil && v.From.After(*v.To) {
		return ErrInvertedRange
	}
	return nil
}

func boundsState(from, to bool) State {
	switch {
	case from && to:
		return StateActive
	case from || to:
		return StatePartiallyEntered
	default:
		return StateInactive
	}
}
