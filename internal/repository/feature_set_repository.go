package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type featureSetRepository struct {
	db db.DBTX
}

// NewFeatureSetRepository creates a product feature set repository
func NewFeatureSetRepository(exec db.DBTX) FeatureSetRepository {
	return &featureSetRepository{db: exec}
}

func (r *featureSetRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[domain.FeatureSet], error) {
	return runSearch(ctx, r.db, featureSetSchema, apiCtx, crit, func(row pgx.Row) (domain.FeatureSet, error) {
		var fs domain.FeatureSet
		err := row.Scan(&fs.ID, &fs.Name, &fs.Description, &fs.CreatedAt)
		return fs, err
	})
}
