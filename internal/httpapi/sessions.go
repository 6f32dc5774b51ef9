package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/routing"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
var ErrSessionNotFound = errors.New("product session not found")

// SessionObserver is told when editing sessions start and end.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// Session is one product editing session owned by a user.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Controller *detail.Controller
	Notes      *notify.Collector
	Router     *routing.Recorder

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// SessionRegistry keeps the open editing sessions and evicts idle ones.
type SessionRegistry struct {
	deps        detail.Dependencies
	idleTimeout time.Duration
	observer    SessionObserver
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionRegistry creates a registry building controllers from deps. The
// notifier and router of deps are replaced per session.
func NewSessionRegistry(deps detail.Dependencies, idleTimeout time.Duration, observer SessionObserver, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		deps:        deps,
		idleTimeout: idleTimeout,
		observer:    observer,
		logger:      logger.Named("sessions"),
		now:         time.Now,
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// Open starts a session for apiCtx. A nil productID creates a new product.
// A failed load still registers the session so the caller can inspect the
// partially loaded state.
func (r *SessionRegistry) Open(ctx context.Context, apiCtx domain.APIContext, productID *uuid.UUID) (*Session, error) {
	notes := &notify.Collector{}
	initial := routing.Route{Name: routing.ProductCreate}
	if productID != nil {
		initial = routing.Route{Name: routing.ProductDetail, Params: map[string]string{"id": productID.String()}}
	}
	router := routing.NewRecorder(initial)

	deps := r.deps
	deps.Notifier = notify.Multi{notes, notify.NewLogNotifier(r.logger)}
	deps.Router = router

	s := &Session{
		ID:         uuid.New(),
		UserID:     apiCtx.UserID,
		Controller: detail.NewController(deps, apiCtx),
		Notes:      notes,
		Router:     router,
		lastUsed:   r.now(),
	}
	err := s.Controller.Open(ctx, productID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.Controller.Close()
		return nil, ctxErr
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	if r.observer != nil {
		r.observer.SessionOpened()
	}
	r.logger.Debug("session opened", zap.Stringer("session_id", s.ID), zap.Stringer("user_id", s.UserID))
	return s, err
}

// Get returns the session id owned by userID and marks it used.
func (r *SessionRegistry) Get(id, userID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Close ends the session id owned by userID.
func (r *SessionRegistry) Close(id, userID uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.closeSession(s, "closed")
	return nil
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes every session idle for longer than the idle timeout and
// returns how many were closed.
func (r *SessionRegistry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	now := r.now()

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince(now) > r.idleTimeout {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		r.closeSession(s, "expired")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes all sessions.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll ends every session.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		r.closeSession(s, "shutdown")
	}
}

func (r *SessionRegistry) closeSession(s *Session, reason string) {
	s.Controller.Close()
	if r.observer != nil {
		r.observer.SessionClosed()
	}
	r.logger.Debug("session ended", zap.Stringer("session_id", s.ID), zap.String("reason", reason))
}
