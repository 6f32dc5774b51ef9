package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type taxRepository struct {
	db db.DBTX
}

// NewTaxRepository creates a tax repository
func NewTaxRepository(exec db.DBTX) TaxRepository {
	return &taxRepository{db: exec}
}

func (r *taxRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[domain.Tax], error) {
	return runSearch(ctx, r.db, taxSchema, apiCtx, crit, func(row pgx.Row) (domain.Tax, error) {
		var t domain.Tax
		err := row.Scan(&t.ID, &t.Name, &t.TaxRate, &t.Position)
		return t, err
	})
}
