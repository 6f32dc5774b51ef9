package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/auth"
)

// APIContext resolves the caller scope from request headers and rejects
// requests without a user.
func APIContext(systemLanguageID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCtx, err := auth.FromRequest(r, systemLanguageID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAPIContext(r.Context(), apiCtx)))
		})
	}
}
