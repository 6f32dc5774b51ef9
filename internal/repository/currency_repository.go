package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type currencyRepository struct {
	db db.DBTX
}

// NewCurrencyRepository creates a currency repository
func NewCurrencyRepository(exec db.DBTX) CurrencyRepository {
	return &currencyRepository{db: exec}
}

func (r *currencyRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[domain.Currency], error) {
	return runSearch(ctx, r.db, currencySchema, apiCtx, crit, func(row pgx.Row) (domain.Currency, error) {
		var c domain.Currency
		err := row.Scan(&c.ID, &c.ISOCode, &c.Name, &c.ShortName, &c.Symbol, &c.Factor, &c.Position, &c.IsSystemDefault)
		return c, err
	})
}
