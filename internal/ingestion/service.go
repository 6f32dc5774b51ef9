// Package ingestion applies spreadsheet uploads to existing products as a
// series of isolated field updates.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/repository"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingNumberColumn is returned when no column names the product number.
	ErrMissingNumberColumn = errors.New("a product_number column is required")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

const lookupBatch = 200

// Service applies uploaded name, active, stock and price columns to products
// identified by product number.
type Service struct {
	products   repository.ProductRepository
	currencies repository.CurrencyRepository
	logger     *zap.Logger
}

// NewService creates a new ingestion service.
func NewService(products repository.ProductRepository, currencies repository.CurrencyRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{products: products, currencies: currencies, logger: logger.Named("ingestion")}
}

// Request describes the ingestion input.
type Request struct {
	APIContext     domain.APIContext
	FileName       string
	HeaderRowIndex *int
	DryRun         bool
	Data           io.Reader
}

// RowError reports a rejected row.
type RowError struct {
	RowNumber     int    `json:"rowNumber"`
	ProductNumber string `json:"productNumber,omitempty"`
	Message       string `json:"message"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	TotalRows   int        `json:"totalRows"`
	ValidRows   int        `json:"validRows"`
	UpdatedRows int        `json:"updatedRows"`
	InvalidRows int        `json:"invalidRows"`
	Columns     []string   `json:"columns"`
	Errors      []RowError `json:"errors"`
	DryRun      bool       `json:"dryRun"`
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// priceColumn maps a price_<iso>[_net] header onto a currency.
type priceColumn struct {
	index    int
	currency domain.Currency
	net      bool
}

type columnLayout struct {
	number int
	name   int
	active int
	stock  int
	prices []priceColumn
}

type pendingRow struct {
	rowNumber int
	number    string
	cells     []string
}

// Ingest reads the uploaded file and patches every valid row. With DryRun the
// rows are resolved and validated but nothing is written.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{Columns: []string{}, Errors: []RowError{}, DryRun: req.DryRun}
	if req.Data == nil {
		return summary, errors.New("file data is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	table, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}

	currencies, err := s.currencies.Search(ctx, req.APIContext, criteria.New(1, 500))
	if err != nil {
		return summary, fmt.Errorf("failed to load currencies: %w", err)
	}
	layout, columns, err := resolveColumns(table.headers, currencies.Items)
	if err != nil {
		return summary, err
	}
	summary.Columns = columns
	summary.TotalRows = len(table.rows)

	pending := make([]pendingRow, 0, len(table.rows))
	for i, row := range table.rows {
		rowNumber := table.headerRowIndex + i + 2
		number := strings.TrimSpace(row[layout.number])
		if number == "" {
			summary.addError(rowNumber, "", errors.New("product number is empty"))
			continue
		}
		pending = append(pending, pendingRow{rowNumber: rowNumber, number: number, cells: row})
	}

	for start := 0; start < len(pending); start += lookupBatch {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		end := min(start+lookupBatch, len(pending))
		if err := s.applyBatch(ctx, req, layout, pending[start:end], &summary); err != nil {
			return summary, err
		}
	}

	s.logger.Info("ingestion finished",
		zap.String("file", req.FileName),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("rows", summary.TotalRows),
		zap.Int("updated", summary.UpdatedRows),
		zap.Int("invalid", summary.InvalidRows),
	)
	return summary, nil
}

func (s *Service) applyBatch(ctx context.Context, req Request, layout columnLayout, rows []pendingRow, summary *Summary) error {
	numbers := make([]string, len(rows))
	for i, row := range rows {
		numbers[i] = row.number
	}
	found, err := s.products.Search(ctx, req.APIContext,
		criteria.New(1, len(numbers)).WithFilter(criteria.EqualsAny("productNumber", numbers)))
	if err != nil {
		return fmt.Errorf("failed to resolve product numbers: %w", err)
	}
	byNumber := make(map[string]*domain.Product, len(found.Items))
	for _, p := range found.Items {
		byNumber[p.ProductNumber] = p
	}

	for _, row := range rows {
		product, ok := byNumber[row.number]
		if !ok {
			summary.addError(row.rowNumber, row.number, repository.ErrNotFound)
			continue
		}
		patch, err := buildPatch(layout, row.cells, product)
		if err != nil {
			summary.addError(row.rowNumber, row.number, err)
			continue
		}
		summary.ValidRows++
		if req.DryRun || patch.Empty() {
			continue
		}
		if err := s.products.Patch(ctx, req.APIContext, product.ID, patch); err != nil {
			summary.ValidRows--
			summary.addError(row.rowNumber, row.number, err)
			continue
		}
		summary.UpdatedRows++
	}
	return nil
}

func (s *Summary) addError(rowNumber int, number string, err error) {
	s.InvalidRows++
	s.Errors = append(s.Errors, RowError{RowNumber: rowNumber, ProductNumber: number, Message: err.Error()})
}

func resolveColumns(headers []string, currencies []domain.Currency) (columnLayout, []string, error) {
	layout := columnLayout{number: -1, name: -1, active: -1, stock: -1}
	byISO := make(map[string]domain.Currency, len(currencies))
	for _, c := range currencies {
		byISO[strings.ToLower(c.ISOCode)] = c
	}

	var recognised []string
	for idx, header := range headers {
		key := strings.ToLower(header)
		switch key {
		case "product_number", "productnumber", "number":
			layout.number = idx
		case "name":
			layout.name = idx
		case "active":
			layout.active = idx
		case "stock":
			layout.stock = idx
		default:
			iso, ok := strings.CutPrefix(key, "price_")
			if !ok {
				continue
			}
			iso, net := strings.CutSuffix(iso, "_net")
			currency, known := byISO[iso]
			if !known {
				return layout, nil, fmt.Errorf("column %s: unknown currency %q", header, iso)
			}
			layout.prices = append(layout.prices, priceColumn{index: idx, currency: currency, net: net})
		}
		recognised = append(recognised, header)
	}
	if layout.number < 0 {
		return layout, nil, ErrMissingNumberColumn
	}
	return layout, recognised, nil
}

// buildPatch turns a row into a patch. Empty cells leave the field alone.
// Price cells update one amount of the product's existing row for that
// currency and keep the other.
func buildPatch(layout columnLayout, row []string, product *domain.Product) (repository.ProductPatch, error) {
	var patch repository.ProductPatch
	cell := func(idx int) string {
		if idx < 0 {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	if v := cell(layout.name); v != "" {
		patch.Name = &v
	}
	if v := cell(layout.active); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return patch, fmt.Errorf("active: %w", err)
		}
		patch.Active = &b
	}
	if v := cell(layout.stock); v != "" {
		n, err := parseInt(v)
		if err != nil {
			return patch, fmt.Errorf("stock: %w", err)
		}
		patch.Stock = &n
	}

	var prices []domain.Price
	for _, col := range layout.prices {
		v := cell(col.index)
		if v == "" {
			continue
		}
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil || amount < 0 {
			return patch, fmt.Errorf("price %s: invalid amount %q", col.currency.ISOCode, v)
		}
		if prices == nil {
			prices = clonePrices(product.Price)
		}
		i := priceIndex(&prices, col.currency.ID)
		if col.net {
			prices[i].Net = domain.Amount(amount)
		} else {
			prices[i].Gross = domain.Amount(amount)
		}
	}
	if prices != nil {
		patch.Price = prices
	}
	return patch, nil
}

func clonePrices(prices []domain.Price) []domain.Price {
	out := make([]domain.Price, len(prices))
	copy(out, prices)
	return out
}

// priceIndex returns the row of currencyID, appending an empty one if needed.
func priceIndex(prices *[]domain.Price, currencyID uuid.UUID) int {
	for i := range *prices {
		if (*prices)[i].CurrencyID == currencyID {
			return i
		}
	}
	row := domain.EmptyPrice()
	row.CurrencyID = currencyID
	*prices = append(*prices, row)
	return len(*prices) - 1
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", value)
	}
	return b, nil
}

func parseInt(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	// Spreadsheets often store integers as floats.
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return int(f), nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	headerIndex := -1
	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if isEmptyRow(records[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerIndex = *headerRowIndex
	} else {
		for idx, row := range records {
			if !isEmptyRow(row) {
				headerIndex = idx
				break
			}
		}
	}
	if headerIndex < 0 {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(records[headerIndex])
	var rows [][]string
	for _, row := range records[headerIndex+1:] {
		if isEmptyRow(row) {
			continue
		}
		rows = append(rows, padRow(row, len(headers)))
	}

	return tableData{headers: headers, rows: rows, headerRowIndex: headerIndex}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		headers[idx] = name
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
