package seo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/productadmin/internal/domain"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestUpdateCanonicalURLDefaults(t *testing.T) {
	fake := &fakeDB{}
	svc := NewService(fake, nil)
	languageID := uuid.New()
	productID := uuid.New()

	err := svc.UpdateCanonicalURL(context.Background(), domain.SeoURL{
		ForeignKey:  productID,
		PathInfo:    "/detail/" + productID.String(),
		SeoPathInfo: "shirts/blue-shirt",
		IsModified:  true,
	}, languageID)
	require.NoError(t, err)

	require.Len(t, fake.execs, 1)
	call := fake.execs[0]
	assert.Contains(t, call.sql, "ON CONFLICT")
	assert.NotEqual(t, uuid.Nil, call.args[0])
	assert.Equal(t, languageID, call.args[1])
	assert.Equal(t, productID, call.args[3])
	assert.Equal(t, ProductRoute, call.args[4])
	assert.Equal(t, "shirts/blue-shirt", call.args[6])
	assert.Equal(t, true, call.args[7])
}

func TestUpdateCanonicalURLWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeDB{err: boom}, nil)

	err := svc.UpdateCanonicalURL(context.Background(), domain.SeoURL{ForeignKey: uuid.New()}, uuid.New())
	require.ErrorIs(t, err, boom)
}
