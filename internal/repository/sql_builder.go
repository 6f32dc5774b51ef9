package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
)

type sqlBuilder struct {
	args []any
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0)}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

func (b *sqlBuilder) bind(value any) string {
	return b.placeholder(b.addArg(value))
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindUUID
	kindBool
	kindInt
	kindNumeric
	kindTime
)

// column is a filterable and sortable scalar expression.
type column struct {
	expr string
	kind fieldKind
}

// collection is a to-many field matched through an EXISTS subquery.
type collection struct {
	table  string
	fk     string
	column string
	kind   fieldKind
}

// entitySchema whitelists the criteria fields of one entity and how they
// map onto SQL.
type entitySchema struct {
	entity      string
	alias       string
	selectList  string
	from        string
	translated  bool
	columns     map[string]column
	collections map[string]collection
	termColumns []string
	defaultSort string
}

// compiledSearch is a search query ready to run. countSQL is empty when the
// criteria does not request a total.
type compiledSearch struct {
	selectSQL string
	countSQL  string
	args      []any
	countArgs []any
}

// compileSearch turns crit into a paginated select and a count query.
// Translated schemas bind the content and system language as $1 and $2.
func compileSearch(schema *entitySchema, apiCtx domain.APIContext, crit criteria.Criteria) (compiledSearch, error) {
	builder := newSQLBuilder()
	if schema.translated {
		builder.addArg(apiCtx.LanguageID)
		builder.addArg(apiCtx.SystemLanguageID)
	}

	where, err := schema.whereClause(builder, crit)
	if err != nil {
		return compiledSearch{}, err
	}
	countArgs := append([]any{}, builder.args...)

	orderClause, err := schema.orderClause(crit.Sortings)
	if err != nil {
		return compiledSearch{}, err
	}

	limit := crit.Limit
	if limit <= 0 {
		limit = criteria.DefaultLimit
	}
	limitPh := builder.bind(limit)
	offsetPh := builder.bind(crit.Offset())

	var body strings.Builder
	body.WriteString("FROM ")
	body.WriteString(schema.from)
	if where != "" {
		body.WriteString(" WHERE ")
		body.WriteString(where)
	}

	out := compiledSearch{
		selectSQL: fmt.Sprintf("SELECT %s %s %s LIMIT %s OFFSET %s", schema.selectList, body.String(), orderClause, limitPh, offsetPh),
		args:      builder.args,
	}
	if crit.TotalCountMode == criteria.TotalCountExact {
		out.countSQL = "SELECT COUNT(*) " + body.String()
		out.countArgs = countArgs
	}
	return out, nil
}

// compileAssociation selects the rows of an association for the given
// owner ids, honouring the association's own filters and sortings.
func compileAssociation(schema *entitySchema, fk string, ownerIDs []uuid.UUID, crit criteria.Criteria) (string, []any, error) {
	builder := newSQLBuilder()
	clauses := []string{fmt.Sprintf("%s.%s = ANY(%s)", schema.alias, fk, builder.bind(ownerIDs))}

	where, err := schema.whereClause(builder, crit)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		clauses = append(clauses, where)
	}

	orderClause, err := schema.orderClause(crit.Sortings)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s %s", schema.selectList, schema.from, strings.Join(clauses, " AND "), orderClause)
	return query, builder.args, nil
}

func (s *entitySchema) whereClause(builder *sqlBuilder, crit criteria.Criteria) (string, error) {
	var clauses []string
	for _, f := range crit.Filters {
		clause, err := s.compileFilter(builder, f)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	if crit.Term != "" && len(s.termColumns) > 0 {
		termPh := builder.bind("%" + escapeLike(crit.Term) + "%")
		parts := make([]string, len(s.termColumns))
		for i, expr := range s.termColumns {
			parts[i] = fmt.Sprintf("%s ILIKE %s", expr, termPh)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	return strings.Join(clauses, " AND "), nil
}

func (s *entitySchema) orderClause(sortings []criteria.Sorting) (string, error) {
	if len(sortings) == 0 {
		if s.defaultSort == "" {
			return "", nil
		}
		return "ORDER BY " + s.defaultSort, nil
	}

	orderings := make([]string, 0, len(sortings)+1)
	for _, sorting := range sortings {
		col, ok := s.columns[s.normalize(sorting.Field)]
		if !ok {
			return "", fmt.Errorf("%w: cannot sort %s by %q", ErrUnknownField, s.entity, sorting.Field)
		}
		direction := criteria.ParseDirection(string(sorting.Direction))
		if sorting.NaturalSort {
			orderings = append(orderings, fmt.Sprintf("length(%s::text) %s NULLS LAST", col.expr, direction))
		}
		orderings = append(orderings, fmt.Sprintf("%s %s NULLS LAST", col.expr, direction))
	}
	orderings = append(orderings, s.alias+".id")

	return "ORDER BY " + strings.Join(orderings, ", "), nil
}

func (s *entitySchema) normalize(field string) string {
	return strings.TrimPrefix(field, s.entity+".")
}

func (s *entitySchema) compileFilter(builder *sqlBuilder, f criteria.Filter) (string, error) {
	switch f.Type {
	case criteria.FilterMulti, criteria.FilterNot:
		op := " AND "
		if f.Operator == criteria.OperatorOr {
			op = " OR "
		}
		parts := make([]string, 0, len(f.Queries))
		for _, q := range f.Queries {
			part, err := s.compileFilter(builder, q)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		joined := "TRUE"
		if len(parts) > 0 {
			joined = "(" + strings.Join(parts, op) + ")"
		}
		if f.Type == criteria.FilterNot {
			return "NOT " + joined, nil
		}
		return joined, nil
	}

	field := s.normalize(f.Field)
	if coll, ok := s.collections[field]; ok {
		return s.compileCollectionFilter(builder, coll, f)
	}
	col, ok := s.columns[field]
	if !ok {
		return "", fmt.Errorf("%w: %s has no field %q", ErrUnknownField, s.entity, f.Field)
	}

	switch f.Type {
	case criteria.FilterEquals:
		if f.Value == nil {
			return col.expr + " IS NULL", nil
		}
		value, err := convertValue(col.kind, f.Value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Field, err)
		}
		return fmt.Sprintf("%s = %s", col.expr, builder.bind(value)), nil

	case criteria.FilterEqualsAny:
		if len(f.Values) == 0 {
			return "FALSE", nil
		}
		return fmt.Sprintf("%s::text = ANY(%s::text[])", col.expr, builder.bind(textValues(f.Values))), nil

	case criteria.FilterContains:
		return fmt.Sprintf("%s::text ILIKE %s", col.expr, builder.bind("%"+escapeLike(fmt.Sprint(f.Value))+"%")), nil

	case criteria.FilterRange:
		return s.compileRange(builder, col, f)
	}

	return "", fmt.Errorf("unsupported filter type %q", f.Type)
}

func (s *entitySchema) compileRange(builder *sqlBuilder, col column, f criteria.Filter) (string, error) {
	bounds := []struct {
		op    string
		value any
	}{
		{">=", f.Params.GTE},
		{"<=", f.Params.LTE},
		{">", f.Params.GT},
		{"<", f.Params.LT},
	}
	var parts []string
	for _, bound := range bounds {
		if bound.value == nil {
			continue
		}
		value, err := convertValue(col.kind, bound.value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Field, err)
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", col.expr, bound.op, builder.bind(value)))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("range filter on %s has no bounds", f.Field)
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (s *entitySchema) compileCollectionFilter(builder *sqlBuilder, coll collection, f criteria.Filter) (string, error) {
	exists := fmt.Sprintf("SELECT 1 FROM %s c WHERE c.%s = %s.id", coll.table, coll.fk, s.alias)

	switch f.Type {
	case criteria.FilterEquals:
		if f.Value == nil {
			return "NOT EXISTS (" + exists + ")", nil
		}
		value, err := convertValue(coll.kind, f.Value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Field, err)
		}
		return fmt.Sprintf("EXISTS (%s AND c.%s = %s)", exists, coll.column, builder.bind(value)), nil

	case criteria.FilterEqualsAny:
		if len(f.Values) == 0 {
			return "FALSE", nil
		}
		return fmt.Sprintf("EXISTS (%s AND c.%s::text = ANY(%s::text[]))", exists, coll.column, builder.bind(textValues(f.Values))), nil
	}

	return "", fmt.Errorf("filter type %q is not supported on collection field %s", f.Type, f.Field)
}

func convertValue(kind fieldKind, value any) (any, error) {
	switch kind {
	case kindUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			id, err := uuid.Parse(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid uuid %q: %w", v, err)
			}
			return id, nil
		}
	case kindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid boolean %q: %w", v, err)
			}
			return b, nil
		}
	case kindInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid integer %q: %w", v, err)
			}
			return n, nil
		}
	case kindNumeric:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q: %w", v, err)
			}
			return n, nil
		}
	case kindTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", v, err)
			}
			return t, nil
		}
	case kindText:
		return fmt.Sprint(value), nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", value, value)
}

func textValues(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
