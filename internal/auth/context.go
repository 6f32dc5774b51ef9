package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/domain"
)

type contextKey string

const apiContextKey contextKey = "apiContext"

// Request headers carrying the caller scope.
const (
	HeaderUserID     = "X-User-Id"
	HeaderLanguageID = "Sw-Language-Id"
)

// ErrMissingUser is returned when a request carries no user id.
var ErrMissingUser = errors.New("user id is required")

// ContextWithAPIContext returns a new context that carries the caller scope.
func ContextWithAPIContext(ctx context.Context, apiCtx domain.APIContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, apiContextKey, apiCtx)
}

// APIContextFromContext retrieves the caller scope from the context, if any.
func APIContextFromContext(ctx context.Context) (domain.APIContext, bool) {
	if ctx == nil {
		return domain.APIContext{}, false
	}
	apiCtx, ok := ctx.Value(apiContextKey).(domain.APIContext)
	if !ok || apiCtx.UserID == uuid.Nil {
		return domain.APIContext{}, false
	}
	return apiCtx, true
}

// FromRequest builds the caller scope from request headers. A missing
// language header selects the system language.
func FromRequest(r *http.Request, systemLanguageID uuid.UUID) (domain.APIContext, error) {
	userID, err := parseHeaderID(r, HeaderUserID)
	if err != nil {
		return domain.APIContext{}, err
	}
	if userID == uuid.Nil {
		return domain.APIContext{}, ErrMissingUser
	}
	apiCtx := domain.NewAPIContext(systemLanguageID, userID)

	languageID, err := parseHeaderID(r, HeaderLanguageID)
	if err != nil {
		return domain.APIContext{}, err
	}
	if languageID != uuid.Nil {
		apiCtx = apiCtx.WithLanguage(languageID)
	}
	return apiCtx, nil
}

func parseHeaderID(r *http.Request, header string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + header + " header: " + err.Error())
	}
	return id, nil
}
