package filter

import (
	"sync"

	"github.com/rpattn/productadmin/internal/criteria"
)

// Observer receives filter panel changes. The list controller owns the
// observer and therefore the lifetime of every widget bound to it.
type Observer interface {
	FilterUpdated(name string, filters []criteria.Filter)
	FilterReset(name string)
}

// Widget holds the UI state of one filter and reports transitions to its
// observer. Entering PartiallyEntered or Active emits an update; falling back
// to Inactive emits a reset.
type Widget struct {
	mu       sync.Mutex
	def      Definition
	value    Value
	observer Observer
}

// NewWidget binds a definition to an observer.
func NewWidget(def Definition, observer Observer) *Widget {
	return &Widget{def: def, observer: observer}
}

// Definition returns the widget's definition.
func (w *Widget) Definition() Definition {
	return w.def
}

// State reports the current lifecycle position.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.value == nil {
		return StateInactive
	}
	return w.value.State()
}

// Value returns the current widget value, nil while untouched or reset.
func (w *Widget) Value() Value {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Update stores a new value and notifies the observer. Invalid values are
// rejected without changing state or emitting anything.
func (w *Widget) Update(v Value) error {
	filters, err := w.def.Predicates(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if v == nil || v.State() == StateInactive {
		w.value = nil
	} else {
		w.value = v
	}
	observer := w.observer
	w.mu.Unlock()

	if observer == nil {
		return nil
	}
	if len(filters) == 0 {
		observer.FilterReset(w.def.Name)
		return nil
	}
	observer.FilterUpdated(w.def.Name, filters)
	return nil
}

// Reset clears the value and emits a reset.
func (w *Widget) Reset() {
	w.mu.Lock()
	w.value = nil
	observer := w.observer
	w.mu.Unlock()
	if observer != nil {
		observer.FilterReset(w.def.Name)
	}
}

// Detach stops the widget from reporting to its observer.
func (w *Widget) Detach() {
	w.mu.Lock()
	w.observer = nil
	w.mu.Unlock()
}
