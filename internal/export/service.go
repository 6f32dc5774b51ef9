// Package export streams product search results into spreadsheets.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/listing"
	"github.com/rpattn/productadmin/internal/repository"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for formats other than xlsx and csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat maps a file extension or name onto a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")) {
	case "xlsx", "":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Request selects what to export. Without AllPages only the criteria's own
// page is written.
type Request struct {
	APIContext domain.APIContext
	Criteria   criteria.Criteria
	Format     Format
	AllPages   bool
}

// Summary describes a finished export.
type Summary struct {
	Rows    int
	Bytes   int64
	Columns int
}

type Service struct {
	products   repository.ProductRepository
	currencies repository.CurrencyRepository
	logger     *zap.Logger

	pageSize  int
	maxRows   int
	sheetName string
	now       func() time.Time
}

type Option func(*Service)

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithMaxRows caps the rows of a multi page export.
func WithMaxRows(rows int) Option {
	return func(s *Service) {
		if rows > 0 {
			s.maxRows = rows
		}
	}
}

func WithSheetName(name string) Option {
	return func(s *Service) {
		if strings.TrimSpace(name) != "" {
			s.sheetName = strings.TrimSpace(name)
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(products repository.ProductRepository, currencies repository.CurrencyRepository, opts ...Option) *Service {
	service := &Service{
		products:   products,
		currencies: currencies,
		logger:     zap.NewNop(),
		pageSize:   500,
		maxRows:    50000,
		sheetName:  "Products",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// FileName returns the download name of an export started now.
func (s *Service) FileName(f Format) string {
	return fmt.Sprintf("products-%s.%s", s.now().UTC().Format("20060102-150405"), f)
}

// Write streams the products matched by req into w.
func (s *Service) Write(ctx context.Context, req Request, w io.Writer) (Summary, error) {
	currencies, err := s.currencies.Search(ctx, req.APIContext, listing.CurrencyCriteria())
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load currencies: %w", err)
	}
	columns := listing.Columns(currencies.Items)

	var sink rowSink
	switch req.Format {
	case FormatXLSX, "":
		sink, err = newXLSXSink(s.sheetName)
	case FormatCSV:
		sink = newCSVSink(w)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return Summary{}, err
	}
	defer sink.Close()

	headers := make([]any, len(columns))
	for i, col := range columns {
		headers[i] = col.Label
	}
	if err := sink.WriteRow(headers); err != nil {
		return Summary{}, fmt.Errorf("write header: %w", err)
	}

	rows, err := s.writeProducts(ctx, req, columns, sink)
	if err != nil {
		return Summary{}, err
	}
	written, err := sink.Finish(w)
	if err != nil {
		return Summary{}, err
	}

	s.logger.Debug("product export written",
		zap.String("format", string(req.Format)),
		zap.Int("rows", rows),
		zap.Int64("bytes", written),
	)
	return Summary{Rows: rows, Bytes: written, Columns: len(columns)}, nil
}

func (s *Service) writeProducts(ctx context.Context, req Request, columns []listing.Column, sink rowSink) (int, error) {
	crit := req.Criteria
	if req.AllPages {
		crit = crit.WithPage(1).WithLimit(s.pageSize)
	}

	cells := make([]any, len(columns))
	rowsExported := 0
	for {
		if ctx.Err() != nil {
			return rowsExported, ctx.Err()
		}
		page, err := s.products.Search(ctx, req.APIContext, crit)
		if err != nil {
			return rowsExported, fmt.Errorf("list products: %w", err)
		}
		for _, p := range page.Items {
			for i, col := range columns {
				cells[i] = listing.CellValue(p, col)
			}
			if err := sink.WriteRow(cells); err != nil {
				return rowsExported, fmt.Errorf("write product row: %w", err)
			}
			rowsExported++
			if rowsExported >= s.maxRows {
				s.logger.Warn("product export truncated", zap.Int("max_rows", s.maxRows))
				return rowsExported, nil
			}
		}
		if !req.AllPages || len(page.Items) < crit.Limit {
			return rowsExported, nil
		}
		crit = crit.WithPage(crit.Page + 1)
	}
}

type rowSink interface {
	WriteRow(values []any) error
	Finish(w io.Writer) (int64, error)
	Close()
}

type xlsxSink struct {
	file  *excelize.File
	sheet string
	row   int
}

func newXLSXSink(sheet string) (*xlsxSink, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create xlsx: %w", err)
	}
	return &xlsxSink{file: f, sheet: sheet}, nil
}

func (x *xlsxSink) WriteRow(values []any) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	copy(row, values)
	return x.file.SetSheetRow(x.sheet, cell, &row)
}

func (x *xlsxSink) Finish(w io.Writer) (int64, error) {
	n, err := x.file.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return n, nil
}

func (x *xlsxSink) Close() {
	_ = x.file.Close()
}

type csvSink struct {
	buffered *bufio.Writer
	counter  *countingWriter
	writer   *csv.Writer
	record   []string
}

func newCSVSink(w io.Writer) *csvSink {
	counter := &countingWriter{writer: w}
	buffered := bufio.NewWriterSize(counter, 64<<10)
	return &csvSink{buffered: buffered, counter: counter, writer: csv.NewWriter(buffered)}
}

func (c *csvSink) WriteRow(values []any) error {
	c.record = c.record[:0]
	for _, v := range values {
		c.record = append(c.record, formatValue(v))
	}
	return c.writer.Write(c.record)
}

func (c *csvSink) Finish(io.Writer) (int64, error) {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return c.counter.count, fmt.Errorf("final flush: %w", err)
	}
	if err := c.buffered.Flush(); err != nil {
		return c.counter.count, fmt.Errorf("final buffered flush: %w", err)
	}
	return c.counter.count, nil
}

func (c *csvSink) Close() {}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
