package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

type customFieldSetRepository struct {
	db db.DBTX
}

// NewCustomFieldSetRepository creates a custom field set repository
func NewCustomFieldSetRepository(exec db.DBTX) CustomFieldSetRepository {
	return &customFieldSetRepository{db: exec}
}

// Search resolves crit against the sets. The customFields association, when
// requested, is loaded with its own sortings.
func (r *customFieldSetRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[domain.CustomFieldSet], error) {
	result, err := runSearch(ctx, r.db, customFieldSetSchema, apiCtx, crit, func(row pgx.Row) (domain.CustomFieldSet, error) {
		var s domain.CustomFieldSet
		err := row.Scan(&s.ID, &s.Name, &s.Active, &s.Relations)
		return s, err
	})
	if err != nil || len(result.Items) == 0 {
		return result, err
	}

	sub, ok := crit.Association("customFields")
	if !ok {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result.Items))
	index := make(map[uuid.UUID]int, len(result.Items))
	for i, s := range result.Items {
		ids[i] = s.ID
		index[s.ID] = i
		result.Items[i].Fields = []domain.CustomField{}
	}

	query, args, err := compileAssociation(customFieldSchema, "set_id", ids, sub)
	if err != nil {
		return SearchResult[domain.CustomFieldSet]{}, fmt.Errorf("failed to compile custom fields association: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return SearchResult[domain.CustomFieldSet]{}, fmt.Errorf("failed to load custom fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f          domain.CustomField
			setID      uuid.UUID
			configJSON []byte
		)
		if err := rows.Scan(&f.ID, &setID, &f.Name, &f.Type, &configJSON); err != nil {
			return SearchResult[domain.CustomFieldSet]{}, fmt.Errorf("failed to scan custom field: %w", err)
		}
		if err := decodeJSON(configJSON, &f.Config); err != nil {
			return SearchResult[domain.CustomFieldSet]{}, fmt.Errorf("decode custom field config: %w", err)
		}
		if i, ok := index[setID]; ok {
			result.Items[i].Fields = append(result.Items[i].Fields, f)
		}
	}
	if err := rows.Err(); err != nil {
		return SearchResult[domain.CustomFieldSet]{}, fmt.Errorf("failed to iterate custom fields: %w", err)
	}
	return result, nil
}
