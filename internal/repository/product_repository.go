package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/domain"
)

// txRunner runs fn inside one transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// productRepository implements ProductRepository interface
type productRepository struct {
	conn *db.Connection
	tx   txRunner
}

// NewProductRepository creates a new product repository
func NewProductRepository(conn *db.Connection) ProductRepository {
	return &productRepository{conn: conn, tx: conn}
}

// Create allocates a new, unsaved product.
func (r *productRepository) Create(apiCtx domain.APIContext) *domain.Product {
	return domain.NewProduct()
}

// HasChanges reports whether product differs from its persisted state.
func (r *productRepository) HasChanges(product *domain.Product) bool {
	return product.HasChanges()
}

// Get loads a single product with the associations named in crit.
func (r *productRepository) Get(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, crit criteria.Criteria) (*domain.Product, error) {
	crit = crit.WithPage(1).WithLimit(1).WithFilter(criteria.Equals("id", id))
	crit.TotalCountMode = criteria.TotalCountNone

	result, err := r.Search(ctx, apiCtx, crit)
	if err != nil {
		return nil, err
	}
	product, ok := result.First()
	if !ok {
		return nil, fmt.Errorf("failed to get product %s: %w", id, ErrNotFound)
	}
	return product, nil
}

// GetByIDs loads products without associations. Missing ids are skipped.
func (r *productRepository) GetByIDs(ctx context.Context, apiCtx domain.APIContext, ids []uuid.UUID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}
	crit := criteria.New(1, len(ids)).WithFilter(criteria.EqualsAny("id", ids))
	crit.TotalCountMode = criteria.TotalCountNone

	result, err := r.Search(ctx, apiCtx, crit)
	if err != nil {
		return nil, fmt.Errorf("failed to get products by IDs: %w", err)
	}
	return result.Items, nil
}

// Search resolves crit and loads the requested associations of every hit.
func (r *productRepository) Search(ctx context.Context, apiCtx domain.APIContext, crit criteria.Criteria) (SearchResult[*domain.Product], error) {
	result, err := runSearch(ctx, r.conn.Pool, productSchema, apiCtx, crit, scanProduct)
	if err != nil {
		return result, err
	}
	if err := r.loadAssociations(ctx, result.Items, crit); err != nil {
		return SearchResult[*domain.Product]{}, err
	}
	for _, p := range result.Items {
		p.MarkPersisted()
	}
	return result, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                                             domain.Product
		priceJSON, purchaseJSON, customJSON, slotJSON []byte
		childCount                                    int64
	)
	if err := row.Scan(
		&p.ID, &p.ParentID, &p.ProductNumber, &p.Active, &p.TaxID, &p.ManufacturerID, &p.FeatureSetID, &p.CoverID,
		&p.Stock, &p.AvailableStock, &p.MinPurchase, &p.MaxPurchase, &p.ReleaseDate,
		&p.Name, &p.MetaTitle, &p.AdditionalText,
		&p.Translated.Name, &p.Translated.MetaTitle, &p.Translated.AdditionalText,
		&priceJSON, &purchaseJSON, &customJSON, &slotJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt,
		&childCount,
	); err != nil {
		return nil, err
	}
	p.ChildCount = int(childCount)

	if err := decodeJSON(priceJSON, &p.Price); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	if err := decodeJSON(purchaseJSON, &p.PurchasePrices); err != nil {
		return nil, fmt.Errorf("decode purchase prices: %w", err)
	}
	if err := decodeJSON(customJSON, &p.CustomFields); err != nil {
		return nil, fmt.Errorf("decode custom fields: %w", err)
	}
	if err := decodeJSON(slotJSON, &p.SlotConfig); err != nil {
		return nil, fmt.Errorf("decode slot config: %w", err)
	}
	return &p, nil
}

func (r *productRepository) loadAssociations(ctx context.Context, products []*domain.Product, crit criteria.Criteria) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(products))
	byID := make(map[uuid.UUID]*domain.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	if sub, ok := crit.Association("media"); ok {
		if err := r.loadMedia(ctx, byID, ids, sub); err != nil {
			return err
		}
	}
	if _, ok := crit.Association("cover"); ok {
		if err := r.loadCovers(ctx, byID, products); err != nil {
			return err
		}
	}
	if crit.HasAssociation("manufacturer") {
		if err := r.loadManufacturers(ctx, products); err != nil {
			return err
		}
	}
	if sub, ok := crit.Association("prices"); ok {
		if err := r.loadPrices(ctx, byID, ids, sub); err != nil {
			return err
		}
	}
	if crit.HasAssociation("visibilities") {
		if err := r.loadVisibilities(ctx, byID, ids); err != nil {
			return err
		}
	}
	if crit.HasAssociation("categories") {
		if err := r.loadIDs(ctx, "SELECT product_id, category_id FROM product_category WHERE product_id = ANY($1) ORDER BY category_id", ids, func(p *domain.Product, id uuid.UUID) {
			p.CategoryIDs = append(p.CategoryIDs, id)
		}, byID); err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
	}
	if crit.HasAssociation("tags") {
		if err := r.loadIDs(ctx, "SELECT product_id, tag_id FROM product_tag WHERE product_id = ANY($1) ORDER BY tag_id", ids, func(p *domain.Product, id uuid.UUID) {
			p.TagIDs = append(p.TagIDs, id)
		}, byID); err != nil {
			return fmt.Errorf("failed to load tags: %w", err)
		}
	}
	return nil
}

func (r *productRepository) loadMedia(ctx context.Context, byID map[uuid.UUID]*domain.Product, ids []uuid.UUID, sub criteria.Criteria) error {
	query, args, err := compileAssociation(productMediaSchema, "product_id", ids, sub)
	if err != nil {
		return fmt.Errorf("failed to compile media association: %w", err)
	}
	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}
	defer rows.Close()

	for _, p := range byID {
		p.Media = []domain.ProductMedia{}
	}
	for rows.Next() {
		var (
			m         domain.ProductMedia
			productID uuid.UUID
		)
		if err := rows.Scan(&m.ID, &productID, &m.MediaID, &m.Position, &m.URL); err != nil {
			return fmt.Errorf("failed to scan media: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Media = append(p.Media, m)
		}
	}
	return rows.Err()
}

func (r *productRepository) loadCovers(ctx context.Context, byID map[uuid.UUID]*domain.Product, products []*domain.Product) error {
	var coverIDs []uuid.UUID
	for _, p := range products {
		if p.CoverID != nil {
			coverIDs = append(coverIDs, *p.CoverID)
		}
	}
	if len(coverIDs) == 0 {
		return nil
	}
	rows, err := r.conn.Pool.Query(ctx, "SELECT id, product_id, media_id, position, url FROM product_media WHERE id = ANY($1)", coverIDs)
	if err != nil {
		return fmt.Errorf("failed to load covers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m         domain.ProductMedia
			productID uuid.UUID
		)
		if err := rows.Scan(&m.ID, &productID, &m.MediaID, &m.Position, &m.URL); err != nil {
			return fmt.Errorf("failed to scan cover: %w", err)
		}
		if p, ok := byID[productID]; ok {
			cover := m
			p.Cover = &cover
		}
	}
	return rows.Err()
}

func (r *productRepository) loadManufacturers(ctx context.Context, products []*domain.Product) error {
	var manufacturerIDs []uuid.UUID
	for _, p := range products {
		if p.ManufacturerID != nil {
			manufacturerIDs = append(manufacturerIDs, *p.ManufacturerID)
		}
	}
	if len(manufacturerIDs) == 0 {
		return nil
	}
	rows, err := r.conn.Pool.Query(ctx, "SELECT id, name FROM product_manufacturer WHERE id = ANY($1)", manufacturerIDs)
	if err != nil {
		return fmt.Errorf("failed to load manufacturers: %w", err)
	}
	defer rows.Close()

	byManufacturer := make(map[uuid.UUID]domain.Manufacturer)
	for rows.Next() {
		var m domain.Manufacturer
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return fmt.Errorf("failed to scan manufacturer: %w", err)
		}
		byManufacturer[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range products {
		if p.ManufacturerID == nil {
			continue
		}
		if m, ok := byManufacturer[*p.ManufacturerID]; ok {
			manufacturer := m
			p.Manufacturer = &manufacturer
		}
	}
	return nil
}

func (r *productRepository) loadPrices(ctx context.Context, byID map[uuid.UUID]*domain.Product, ids []uuid.UUID, sub criteria.Criteria) error {
	query, args, err := compileAssociation(productPriceSchema, "product_id", ids, sub)
	if err != nil {
		return fmt.Errorf("failed to compile prices association: %w", err)
	}
	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load prices: %w", err)
	}
	defer rows.Close()

	for _, p := range byID {
		p.Prices = []domain.AdvancedPrice{}
	}
	for rows.Next() {
		var (
			ap        domain.AdvancedPrice
			productID uuid.UUID
			priceJSON []byte
		)
		if err := rows.Scan(&ap.ID, &productID, &ap.RuleID, &ap.QuantityStart, &ap.QuantityEnd, &priceJSON); err != nil {
			return fmt.Errorf("failed to scan price: %w", err)
		}
		if err := decodeJSON(priceJSON, &ap.Price); err != nil {
			return fmt.Errorf("decode advanced price: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Prices = append(p.Prices, ap)
		}
	}
	return rows.Err()
}

func (r *productRepository) loadVisibilities(ctx context.Context, byID map[uuid.UUID]*domain.Product, ids []uuid.UUID) error {
	rows, err := r.conn.Pool.Query(ctx,
		"SELECT id, product_id, sales_channel_id, visibility FROM product_visibility WHERE product_id = ANY($1) ORDER BY sales_channel_id", ids)
	if err != nil {
		return fmt.Errorf("failed to load visibilities: %w", err)
	}
	defer rows.Close()

	for _, p := range byID {
		p.Visibilities = []domain.Visibility{}
	}
	for rows.Next() {
		var (
			v         domain.Visibility
			productID uuid.UUID
		)
		if err := rows.Scan(&v.ID, &productID, &v.SalesChannelID, &v.Visibility); err != nil {
			return fmt.Errorf("failed to scan visibility: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Visibilities = append(p.Visibilities, v)
		}
	}
	return rows.Err()
}

func (r *productRepository) loadIDs(
	ctx context.Context,
	query string,
	ids []uuid.UUID,
	assign func(*domain.Product, uuid.UUID),
	byID map[uuid.UUID]*domain.Product,
) error {
	rows, err := r.conn.Pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var productID, id uuid.UUID
		if err := rows.Scan(&productID, &id); err != nil {
			return err
		}
		if p, ok := byID[productID]; ok {
			assign(p, id)
		}
	}
	return rows.Err()
}

// Save writes the whole aggregate in one transaction. Constraint failures
// are reported as *SaveError.
func (r *productRepository) Save(ctx context.Context, apiCtx domain.APIContext, product *domain.Product) error {
	priceJSON, err := encodeJSONArray(product.Price)
	if err != nil {
		return fmt.Errorf("failed to marshal price: %w", err)
	}
	purchaseJSON, err := encodeJSONArray(product.PurchasePrices)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase prices: %w", err)
	}
	customJSON, err := encodeJSONObject(product.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}
	slotJSON, err := encodeJSONObject(product.SlotConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal slot config: %w", err)
	}

	err = r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product (id, parent_id, product_number, active, tax_id, manufacturer_id, feature_set_id, cover_id,
				stock, available_stock, min_purchase, max_purchase, release_date, price, purchase_prices, custom_fields, slot_config)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (id) DO UPDATE SET
				parent_id = EXCLUDED.parent_id,
				product_number = EXCLUDED.product_number,
				active = EXCLUDED.active,
				tax_id = EXCLUDED.tax_id,
				manufacturer_id = EXCLUDED.manufacturer_id,
				feature_set_id = EXCLUDED.feature_set_id,
				cover_id = EXCLUDED.cover_id,
				stock = EXCLUDED.stock,
				available_stock = EXCLUDED.available_stock,
				min_purchase = EXCLUDED.min_purchase,
				max_purchase = EXCLUDED.max_purchase,
				release_date = EXCLUDED.release_date,
				price = EXCLUDED.price,
				purchase_prices = EXCLUDED.purchase_prices,
				custom_fields = EXCLUDED.custom_fields,
				slot_config = EXCLUDED.slot_config,
				version = product.version + 1,
				updated_at = NOW()`,
			product.ID, product.ParentID, product.ProductNumber, product.Active, product.TaxID, product.ManufacturerID,
			product.FeatureSetID, product.CoverID, product.Stock, product.MinPurchase, product.MaxPurchase,
			product.ReleaseDate, priceJSON, purchaseJSON, customJSON, slotJSON,
		); err != nil {
			return err
		}

		if err := upsertTranslation(ctx, tx, product.ID, apiCtx.LanguageID, product.Name, product.MetaTitle, product.AdditionalText); err != nil {
			return err
		}
		return replaceChildren(ctx, tx, product)
	})
	if err != nil {
		return translateWriteError(err, product.ProductNumber)
	}
	return nil
}

func upsertTranslation(ctx context.Context, tx pgx.Tx, productID, languageID uuid.UUID, name, metaTitle, additionalText *string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO product_translation (product_id, language_id, name, meta_title, additional_text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, language_id) DO UPDATE SET
			name = EXCLUDED.name,
			meta_title = EXCLUDED.meta_title,
			additional_text = EXCLUDED.additional_text`,
		productID, languageID, name, metaTitle, additionalText)
	return err
}

func replaceChildren(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	for _, table := range []string{"product_media", "product_price", "product_visibility", "product_category", "product_tag"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE product_id = $1", product.ID); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for _, m := range product.Media {
		batch.Queue("INSERT INTO product_media (id, product_id, media_id, position, url) VALUES ($1, $2, $3, $4, $5)",
			m.ID, product.ID, m.MediaID, m.Position, m.URL)
	}
	for _, ap := range product.Prices {
		priceJSON, err := encodeJSONArray(ap.Price)
		if err != nil {
			return fmt.Errorf("failed to marshal advanced price: %w", err)
		}
		batch.Queue("INSERT INTO product_price (id, product_id, rule_id, quantity_start, quantity_end, price) VALUES ($1, $2, $3, $4, $5, $6)",
			ap.ID, product.ID, ap.RuleID, ap.QuantityStart, ap.QuantityEnd, priceJSON)
	}
	for _, v := range product.Visibilities {
		batch.Queue("INSERT INTO product_visibility (id, product_id, sales_channel_id, visibility) VALUES ($1, $2, $3, $4)",
			v.ID, product.ID, v.SalesChannelID, v.Visibility)
	}
	for _, id := range product.CategoryIDs {
		batch.Queue("INSERT INTO product_category (product_id, category_id) VALUES ($1, $2)", product.ID, id)
	}
	for _, id := range product.TagIDs {
		batch.Queue("INSERT INTO product_tag (product_id, tag_id) VALUES ($1, $2)", product.ID, id)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

// CloneCriteria loads everything a clone copies.
func CloneCriteria() criteria.Criteria {
	return criteria.New(1, 1).
		AddAssociation("media").
		AddAssociation("cover").
		AddAssociation("prices").
		AddAssociation("visibilities").
		AddAssociation("categories").
		AddAssociation("tags")
}

// Clone copies a product with its media, advanced prices, visibilities,
// categories and tags into a new inactive product and saves it.
func (r *productRepository) Clone(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, overwrites CloneOverwrites) (*domain.Product, error) {
	source, err := r.Get(ctx, apiCtx, id, CloneCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to load product to clone: %w", err)
	}
	dup := overwrites.Apply(source)
	if err := r.Save(ctx, apiCtx, dup); err != nil {
		return nil, err
	}
	dup.MarkPersisted()
	return dup, nil
}

// Patch applies an isolated field update to one product.
func (r *productRepository) Patch(ctx context.Context, apiCtx domain.APIContext, id uuid.UUID, patch ProductPatch) error {
	if patch.Empty() {
		return nil
	}

	query, args, err := patchQuery(id, patch)
	if err != nil {
		return err
	}

	err = r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}

		if patch.Name != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO product_translation (product_id, language_id, name)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, language_id) DO UPDATE SET name = EXCLUDED.name`,
				id, apiCtx.LanguageID, *patch.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to patch product %s: %w", id, ErrNotFound)
		}
		return translateWriteError(err, "")
	}
	return nil
}

// patchQuery builds the UPDATE of the root fields in patch. Stock patches
// move the available stock along since no reservations are tracked.
func patchQuery(id uuid.UUID, patch ProductPatch) (string, []any, error) {
	builder := newSQLBuilder()
	var sets []string
	if patch.Active != nil {
		sets = append(sets, "active = "+builder.bind(*patch.Active))
	}
	if patch.Stock != nil {
		ph := builder.bind(*patch.Stock)
		sets = append(sets, "stock = "+ph, "available_stock = "+ph)
	}
	if patch.Price != nil {
		priceJSON, err := encodeJSONArray(patch.Price)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal price: %w", err)
		}
		sets = append(sets, "price = "+builder.bind(priceJSON))
	}
	sets = append(sets, "version = version + 1", "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE product SET %s WHERE id = %s", strings.Join(sets, ", "), builder.bind(id))
	return query, builder.args, nil
}

func decodeJSON(data []byte, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, target)
}

func encodeJSONArray[T any](items []T) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

func encodeJSONObject[V any](m map[string]V) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
