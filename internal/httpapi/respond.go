package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/auth"
	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/export"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/listing"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error         string                `json:"error"`
	Details       []repository.APIError `json:"details,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error, notes []notify.Notification) {
	resp := errorResponse{Error: err.Error(), Notifications: notes}
	if saveErr, ok := repository.AsSaveError(err); ok {
		resp.Details = saveErr.Errors
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, auth.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, detail.ErrNoProduct),
		errors.Is(err, domain.ErrDuplicateMedia):
		return http.StatusConflict
	case errors.Is(err, detail.ErrPurchaseBounds),
		errors.Is(err, detail.ErrInvalidCustomFields),
		errors.Is(err, detail.ErrSlotNotFound),
		errors.Is(err, domain.ErrMediaNotFound),
		errors.Is(err, domain.ErrDefaultCurrency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, filter.ErrInvertedRange),
		errors.Is(err, listing.ErrUnknownWidget),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, errBadRequest),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return http.StatusBadRequest
	}
	if _, ok := repository.AsSaveError(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, target any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(body) == 0 {
		return badRequest("request body is empty")
	}
	return json.Unmarshal(body, target)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s: %v", name, err)
	}
	return id, nil
}
