package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestRecorder observes finished requests.
type RequestRecorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// Metrics records every request under its chi route pattern.
func Metrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			recorder.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
