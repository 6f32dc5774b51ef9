package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes reported in SaveError.
const (
	CodeDuplicateProductNumber = "CONTENT__DUPLICATE_PRODUCT_NUMBER"
	CodeConstraintViolation    = "FRAMEWORK__WRITE_CONSTRAINT_VIOLATION"
	CodeInvalidReference       = "FRAMEWORK__INVALID_FOREIGN_KEY"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownField is returned when a criteria names a field the entity does not expose.
	ErrUnknownField = errors.New("unknown criteria field")
)

// APIError is one structured rejection of a write.
type APIError struct {
	Code   string         `json:"code"`
	Detail string         `json:"detail"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// SaveError is returned when the backend rejects a write.
type SaveError struct {
	Errors []APIError `json:"errors"`
}

func (e *SaveError) Error() string {
	if len(e.Errors) == 0 {
		return "save rejected"
	}
	parts := make([]string, len(e.Errors))
	for i, apiErr := range e.Errors {
		parts[i] = apiErr.Code + ": " + apiErr.Detail
	}
	return "save rejected: " + strings.Join(parts, "; ")
}

// FirstCode returns the code of the first error, or "".
func (e *SaveError) FirstCode() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

// AsSaveError unwraps err into a SaveError.
func AsSaveError(err error) (*SaveError, bool) {
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return saveErr, true
	}
	return nil, false
}

// translateWriteError maps postgres constraint failures of a product write
// to structured save errors. Other errors are returned wrapped.
func translateWriteError(err error, productNumber string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to save product: %w", err)
	}
	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == "product_number_unique" {
			return &SaveError{Errors: []APIError{{
				Code:   CodeDuplicateProductNumber,
				Detail: fmt.Sprintf("Product with number %q already exists.", productNumber),
				Meta:   map[string]any{"number": productNumber},
			}}}
		}
	case "23503":
		return &SaveError{Errors: []APIError{{
			Code:   CodeInvalidReference,
			Detail: pgErr.Message,
			Meta:   map[string]any{"constraint": pgErr.ConstraintName},
		}}}
	}
	if strings.HasPrefix(pgErr.Code, "23") {
		return &SaveError{Errors: []APIError{{
			Code:   CodeConstraintViolation,
			Detail: pgErr.Message,
			Meta:   map[string]any{"constraint": pgErr.ConstraintName, "column": pgErr.ColumnName},
		}}}
	}
	return fmt.Errorf("failed to save product: %w", err)
}
