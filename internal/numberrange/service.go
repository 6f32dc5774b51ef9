package numberrange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/db"
)

// Placeholder is replaced by the counter value inside a pattern.
const Placeholder = "{n}"

// ErrUnknownEntity is returned when no number range is configured for an entity.
var ErrUnknownEntity = errors.New("no number range configured")

// Reserver hands out business numbers such as product numbers.
type Reserver interface {
	Reserve(ctx context.Context, entity string, preview bool) (string, error)
}

// Service reserves numbers from the number_range table.
type Service struct {
	db     db.DBTX
	logger *zap.Logger
}

// NewService creates a number range service.
func NewService(q db.DBTX, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: q, logger: logger}
}

// Reserve returns the next number of entity. A preview reads the next number
// without consuming it, so two previews may return the same value.
func (s *Service) Reserve(ctx context.Context, entity string, preview bool) (string, error) {
	query := `UPDATE number_range SET next_value = next_value + 1 WHERE entity = $1 RETURNING pattern, next_value - 1`
	if preview {
		query = `SELECT pattern, next_value FROM number_range WHERE entity = $1`
	}

	var (
		pattern string
		value   int64
	)
	if err := s.db.QueryRow(ctx, query, entity).Scan(&pattern, &value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w for %s", ErrUnknownEntity, entity)
		}
		return "", fmt.Errorf("failed to reserve %s number: %w", entity, err)
	}

	number := Format(pattern, value)
	if !preview {
		s.logger.Debug("reserved number", zap.String("entity", entity), zap.String("number", number))
	}
	return number, nil
}

// Format renders value into pattern. A pattern without placeholder gets the
// value appended.
func Format(pattern string, value int64) string {
	n := strconv.FormatInt(value, 10)
	if !strings.Contains(pattern, Placeholder) {
		return pattern + n
	}
	return strings.ReplaceAll(pattern, Placeholder, n)
}
