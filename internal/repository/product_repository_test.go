package repository

import (
	"context"
	"errors"
	"strings"
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

// recordingTx captures the statements a write sends. Exec fails with
// failOn when the statement contains failMatch.
type recordingTx struct {
	pgx.Tx

	execs     []execCall
	batches   []*pgx.Batch
	failMatch string
	failOn    error
	tag       string
}

func (tx *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, execCall{sql: sql, args: args})
	if tx.failMatch != "" && strings.Contains(sql, tx.failMatch) {
		return pgconn.CommandTag{}, tx.failOn
	}
	tag := tx.tag
	if tag == "" {
		tag = "UPDATE 1"
	}
	return pgconn.NewCommandTag(tag), nil
}

func (tx *recordingTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.batches = append(tx.batches, b)
	return closedBatch{}
}

type closedBatch struct {
	pgx.BatchResults
}

func (closedBatch) Close() error { return nil }

type txFunc func(ctx context.Context, fn func(pgx.Tx) error) error

func (f txFunc) WithTx(ctx context.Context, fn func(pgx.Tx) error) error { return f(ctx, fn) }

func newWriteRepository(tx *recordingTx) *productRepository {
	return &productRepository{tx: txFunc(func(_ context.Context, fn func(pgx.Tx) error) error {
		return fn(tx)
	})}
}

func TestSaveWritesAggregate(t *testing.T) {
	tx := &recordingTx{}
	repo := newWriteRepository(tx)

	product := domain.NewProduct()
	product.ProductNumber = "SW1"
	name := "Shirt"
	product.Name = &name
	media, err := product.AddMedia(uuid.New(), "a.png")
	require.NoError(t, err)
	product.Prices = []domain.AdvancedPrice{{ID: uuid.New(), RuleID: uuid.New(), QuantityStart: 1}}
	product.Visibilities = []domain.Visibility{{ID: uuid.New(), SalesChannelID: uuid.New(), Visibility: 30}}
	product.CategoryIDs = []uuid.UUID{uuid.New()}
	product.TagIDs = []uuid.UUID{uuid.New()}

	apiCtx := testAPIContext()
	require.NoError(t, repo.Save(context.Background(), apiCtx, product))

	require.Len(t, tx.execs, 7)
	assert.Contains(t, tx.execs[0].sql, "INSERT INTO product (")
	assert.Contains(t, tx.execs[0].sql, "ON CONFLICT (id) DO UPDATE")
	assert.Equal(t, product.ID, tx.execs[0].args[0])
	assert.Equal(t, "SW1", tx.execs[0].args[2])
	assert.Equal(t, product.CoverID, tx.execs[0].args[7])

	assert.Contains(t, tx.execs[1].sql, "INSERT INTO product_translation")
	assert.Equal(t, []any{product.ID, apiCtx.LanguageID, product.Name, product.MetaTitle, product.AdditionalText}, tx.execs[1].args)

	var deleted []string
	for _, e := range tx.execs[2:] {
		deleted = append(deleted, e.sql)
		assert.Equal(t, []any{product.ID}, e.args)
	}
	assert.Equal(t, []string{
		"DELETE FROM product_media WHERE product_id = $1",
		"DELETE FROM product_price WHERE product_id = $1",
		"DELETE FROM product_visibility WHERE product_id = $1",
		"DELETE FROM product_category WHERE product_id = $1",
		"DELETE FROM product_tag WHERE product_id = $1",
	}, deleted)

	require.Len(t, tx.batches, 1)
	queued := tx.batches[0].QueuedQueries
	require.Len(t, queued, 5)
	assert.True(t, strings.HasPrefix(queued[0].SQL, "INSERT INTO product_media"))
	assert.Equal(t, []any{media.ID, product.ID, media.MediaID, 0, "a.png"}, queued[0].Arguments)
	assert.True(t, strings.HasPrefix(queued[1].SQL, "INSERT INTO product_price"))
	assert.True(t, strings.HasPrefix(queued[2].SQL, "INSERT INTO product_visibility"))
	assert.True(t, strings.HasPrefix(queued[3].SQL, "INSERT INTO product_category"))
	assert.True(t, strings.HasPrefix(queued[4].SQL, "INSERT INTO product_tag"))
}

func TestSaveWithoutChildrenSendsNoBatch(t *testing.T) {
	tx := &recordingTx{}
	repo := newWriteRepository(tx)

	require.NoError(t, repo.Save(context.Background(), testAPIContext(), domain.NewProduct()))
	assert.Len(t, tx.execs, 7)
	assert.Empty(t, tx.batches)
}

func TestSaveReportsDuplicateNumber(t *testing.T) {
	tx := &recordingTx{
		failMatch: "INSERT INTO product (",
		failOn:    &pgconn.PgError{Code: "23505", ConstraintName: "product_number_unique", Message: "duplicate key"},
	}
	repo := newWriteRepository(tx)

	product := domain.NewProduct()
	product.ProductNumber = "SW7"
	err := repo.Save(context.Background(), testAPIContext(), product)

	saveErr, ok := AsSaveError(err)
	require.True(t, ok)
	assert.Equal(t, CodeDuplicateProductNumber, saveErr.FirstCode())
	assert.Equal(t, "SW7", saveErr.Errors[0].Meta["number"])
	assert.Len(t, tx.execs, 1, "the transaction stops at the failing statement")
}

func TestSaveWrapsOtherFailures(t *testing.T) {
	tx := &recordingTx{failMatch: "product_translation", failOn: errors.New("connection reset")}
	repo := newWriteRepository(tx)

	err := repo.Save(context.Background(), testAPIContext(), domain.NewProduct())
	require.ErrorContains(t, err, "failed to save product: connection reset")
	_, ok := AsSaveError(err)
	assert.False(t, ok)
}

func TestPatchQuery(t *testing.T) {
	id := uuid.New()
	active, stock := true, 12

	query, args, err := patchQuery(id, ProductPatch{Active: &active, Stock: &stock, Price: []domain.Price{}})
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE product SET active = $1, stock = $2, available_stock = $2, price = $3, version = version + 1, updated_at = NOW() WHERE id = $4",
		query)
	assert.Equal(t, []any{true, 12, []byte("[]"), id}, args)

	query, args, err = patchQuery(id, ProductPatch{Name: ptrTo("Shirt")})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE product SET version = version + 1, updated_at = NOW() WHERE id = $1", query)
	assert.Equal(t, []any{id}, args)
}

func TestPatchWritesNameTranslation(t *testing.T) {
	tx := &recordingTx{}
	repo := newWriteRepository(tx)
	apiCtx := testAPIContext()
	id := uuid.New()

	require.NoError(t, repo.Patch(context.Background(), apiCtx, id, ProductPatch{Name: ptrTo("Shirt")}))
	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[1].sql, "INSERT INTO product_translation (product_id, language_id, name)")
	assert.Equal(t, []any{id, apiCtx.LanguageID, "Shirt"}, tx.execs[1].args)
}

func TestPatchUnknownProduct(t *testing.T) {
	tx := &recordingTx{tag: "UPDATE 0"}
	repo := newWriteRepository(tx)

	stock := 3
	err := repo.Patch(context.Background(), testAPIContext(), uuid.New(), ProductPatch{Stock: &stock})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, tx.execs, 1)
}

func TestPatchEmptyIsNoop(t *testing.T) {
	tx := &recordingTx{}
	repo := newWriteRepository(tx)

	require.NoError(t, repo.Patch(context.Background(), testAPIContext(), uuid.New(), ProductPatch{}))
	assert.Empty(t, tx.execs)
}

func TestCloneOverwrites(t *testing.T) {
	source := domain.NewProduct()
	source.Name = ptrTo("Shirt")
	source.MarkPersisted()

	dup := CloneOverwrites{ProductNumber: "SW2", NameSuffix: "Copy"}.Apply(source)
	assert.Equal(t, "SW2", dup.ProductNumber)
	assert.Equal(t, "Shirt Copy", *dup.Name)
	assert.Equal(t, "Shirt", *source.Name)

	unnamed := CloneOverwrites{ProductNumber: "SW3", NameSuffix: "Copy"}.Apply(domain.NewProduct())
	assert.Nil(t, unnamed.Name)
}

func ptrTo[T any](v T) *T { return &v }
