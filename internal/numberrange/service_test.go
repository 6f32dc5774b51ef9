package numberrange

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	pattern string
	value   int64
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.pattern
	*dest[1].(*int64) = r.value
	return nil
}

type fakeDB struct {
	row     fakeRow
	queries []string
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	return f.row
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "SW10000", Format("SW{n}", 10000))
	assert.Equal(t, "A-7-B", Format("A-{n}-B", 7))
	assert.Equal(t, "INV42", Format("INV", 42))
}

func TestReservePreviewDoesNotIncrement(t *testing.T) {
	fake := &fakeDB{row: fakeRow{pattern: "SW{n}", value: 10005}}
	svc := NewService(fake, nil)

	number, err := svc.Reserve(context.Background(), "product", true)
	require.NoError(t, err)
	assert.Equal(t, "SW10005", number)
	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], "SELECT")
	assert.NotContains(t, fake.queries[0], "UPDATE")
}

func TestReserveConsumesNumber(t *testing.T) {
	fake := &fakeDB{row: fakeRow{pattern: "SW{n}", value: 10005}}
	svc := NewService(fake, nil)

	number, err := svc.Reserve(context.Background(), "product", false)
	require.NoError(t, err)
	assert.Equal(t, "SW10005", number)
	assert.Contains(t, fake.queries[0], "UPDATE number_range SET next_value = next_value + 1")
}

func TestReserveUnknownEntity(t *testing.T) {
	svc := NewService(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, nil)

	_, err := svc.Reserve(context.Background(), "order", true)
	require.ErrorIs(t, err, ErrUnknownEntity)
}
