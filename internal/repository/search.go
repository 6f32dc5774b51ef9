package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type scanFunc[T any] func(row pgx.Row) (T, error)

// runSearch executes a compiled criteria and scans every row with scan.
// Without an exact count mode the total is the size of the page.
func runSearch[T any](
	ctx context.Context,
	q db.DBTX,
	schema *entitySchema,
	apiCtx domain.APIContext,
	crit criteria.Criteria,
	scan scanFunc[T],
) (SearchResult[T], error) {
	if err := crit.Validate(); err != nil {
		return SearchResult[T]{}, fmt.Errorf("invalid %s criteria: %w", schema.entity, err)
	}

	compiled, err := compileSearch(schema, apiCtx, crit)
	if err != nil {
		return SearchResult[T]{}, fmt.Errorf("failed to compile %s criteria: %w", schema.entity, err)
	}

	rows, err := q.Query(ctx, compiled.selectSQL, compiled.args...)
	if err != nil {
		return SearchResult[T]{}, fmt.Errorf("failed to search %s: %w", schema.entity, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return SearchResult[T]{}, fmt.Errorf("failed to scan %s: %w", schema.entity, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return SearchResult[T]{}, fmt.Errorf("failed to iterate %s rows: %w", schema.entity, err)
	}

	total := len(items)
	if compiled.countSQL != "" {
		if err := q.QueryRow(ctx, compiled.countSQL, compiled.countArgs...).Scan(&total); err != nil {
			return SearchResult[T]{}, fmt.Errorf("failed to count %s: %w", schema.entity, err)
		}
	}

	return SearchResult[T]{Items: items, Total: total}, nil
}
