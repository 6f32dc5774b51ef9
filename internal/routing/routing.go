// Package routing models navigation between admin views.
package routing

import (
	"errors"
	"sync"
)

// Route names used by the product module.
const (
	ProductList   = "sw.product.index"
	ProductCreate = "sw.product.create"
	ProductDetail = "sw.product.detail"
)

// ErrNoHistory is returned by Back when nothing was navigated to yet.
var ErrNoHistory = errors.New("no previous route")

// Route is a named view plus its parameters.
type Route struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// Router navigates between views.
type Router interface {
	Push(route Route) error
	Back() error
}

// Recorder is an in-memory router that keeps the navigation history.
type Recorder struct {
	mu      sync.Mutex
	history []Route
}

// NewRecorder creates a recorder starting at initial.
func NewRecorder(initial Route) *Recorder {
	return &Recorder{history: []Route{initial}}
}

// Push navigates to route.
func (r *Recorder) Push(route Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, route)
	return nil
}

// Back returns to the previous route.
func (r *Recorder) Back() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) < 2 {
		return ErrNoHistory
	}
	r.history = r.history[:len(r.history)-1]
	return nil
}

// Current returns the active route.
func (r *Recorder) Current() (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Route{}, false
	}
	return r.history[len(r.history)-1], true
}
