// Package importer reads and writes the product catalog as CSV.
//
// The file has a fixed set of columns, matched by header name in any order and
// case:
//
//	name,description,price,stock,category,image_url
//
// Import is partially successful: every row that passes validation is inserted in
// one statement and each rejected row is reported with its line number.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kalakari/storefront/internal/domain"
)

// Columns is the header Export writes and Import requires.
var Columns = []string{"name", "description", "price", "stock", "category", "image_url"}

// DefaultMaxRows bounds the number of data rows in one import.
const DefaultMaxRows = 5000

const byteOrderMark = "\ufeff"

// Products is the catalog storage the importer writes to and exports from.
type Products interface {
	CreateMany(ctx context.Context, products []*domain.Product) error
	All(ctx context.Context) ([]domain.Product, error)
}

// Categories resolves the category column.
type Categories interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.Category, error)
}

// RowError reports why one line of the file was skipped. Row is the line number,
// the header being line 1.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report summarises an import.
type Report struct {
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

type Importer struct {
	products   Products
	categories Categories
	logger     *slog.Logger
	maxRows    int
}

type Option func(*Importer)

// WithMaxRows overrides DefaultMaxRows.
func WithMaxRows(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.maxRows = n
		}
	}
}

func New(products Products, categories Categories, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Importer{
		products:   products,
		categories: categories,
		logger:     logger.With("component", "importer"),
		maxRows:    DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import parses r and inserts the valid rows. A malformed header, an empty file or
// too many rows fail the whole import; anything else is a row error.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Report{}, domain.Invalid("empty file", map[string]string{"file": "the file has no header row"})
	}
	if err != nil {
		return Report{}, domain.Invalid("unreadable file", map[string]string{"file": err.Error()})
	}
	cols, err := mapColumns(header)
	if err != nil {
		return Report{}, err
	}

	lookup, err := i.categoryLookup(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Errors: []RowError{}}
	var products []*domain.Product
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rows++
		if rows > i.maxRows {
			return Report{}, domain.Invalid("too many rows", map[string]string{
				"file": fmt.Sprintf("at most %d rows can be imported at once", i.maxRows),
			})
		}

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return Report{}, domain.Internal(fmt.Errorf("read csv: %w", err), "failed to read file")
			}
			report.Errors = append(report.Errors, RowError{Row: perr.StartLine, Message: perr.Err.Error()})
			continue
		}
		line, _ := reader.FieldPos(0)

		product, msg := parseRow(cols.row(record), lookup)
		if msg != "" {
			report.Errors = append(report.Errors, RowError{Row: line, Message: msg})
			continue
		}
		products = append(products, product)
	}

	if rows == 0 {
		return Report{}, domain.Invalid("empty file", map[string]string{"file": "the file has no data rows"})
	}

	if err := i.products.CreateMany(ctx, products); err != nil {
		return Report{}, err
	}
	report.Imported = len(products)

	i.logger.InfoContext(ctx, "products imported",
		slog.Int("rows", rows),
		slog.Int("imported", report.Imported),
		slog.Int("rejected", len(report.Errors)),
	)
	return report, nil
}

// Export writes every product, active or not, with its category slug.
func (i *Importer) Export(ctx context.Context, w io.Writer) error {
	products, err := i.products.All(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		category := ""
		if p.Category != nil {
			category = p.Category.Slug
		}
		record := []string{p.Name, p.Description, p.Price.String(), strconv.Itoa(p.Stock), category, p.ImageURL}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	i.logger.InfoContext(ctx, "products exported", slog.Int("rows", len(products)))
	return nil
}

// columns maps each known column to its index in the file.
type columns map[string]int

func mapColumns(header []string) (columns, error) {
	cols := make(columns, len(Columns))
	for idx, name := range header {
		if idx == 0 {
			name = strings.TrimPrefix(name, byteOrderMark)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[name]; !dup {
			cols[name] = idx
		}
	}

	var missing []string
	for _, name := range Columns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid("invalid header", map[string]string{
			"header": "missing columns: " + strings.Join(missing, ", "),
		})
	}
	return cols, nil
}

// row picks the known columns out of record. Short records read as empty cells.
func (c columns) row(record []string) map[string]string {
	out := make(map[string]string, len(Columns))
	for _, name := range Columns {
		if idx := c[name]; idx < len(record) {
			out[name] = strings.TrimSpace(record[idx])
		}
	}
	return out
}

func parseRow(row map[string]string, lookup map[string]*domain.Category) (*domain.Product, string) {
	name := row["name"]
	if name == "" {
		return nil, "name is required"
	}
	if len(name) > 200 {
		return nil, "name must be at most 200 characters"
	}

	price, err := domain.ParseMoney(row["price"])
	if err != nil {
		return nil, fmt.Sprintf("invalid price %q", row["price"])
	}
	if !price.IsPositive() {
		return nil, "price must be greater than 0"
	}

	stock := 0
	if raw := row["stock"]; raw != "" {
		stock, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Sprintf("invalid stock %q", raw)
		}
		if stock < 0 {
			return nil, "stock must be no less than 0"
		}
	}

	ref := row["category"]
	if ref == "" {
		return nil, "category is required"
	}
	category, ok := lookup[strings.ToLower(ref)]
	if !ok {
		return nil, fmt.Sprintf("category %q not found", ref)
	}

	return &domain.Product{
		Name:        name,
		Description: row["description"],
		Price:       price,
		Stock:       stock,
		ImageURL:    row["image_url"],
		CategoryID:  category.ID,
		Status:      domain.LifecycleActive,
	}, ""
}

// categoryLookup indexes active categories by lower-cased slug and name. A slug
// wins over another category's name.
func (i *Importer) categoryLookup(ctx context.Context) (map[string]*domain.Category, error) {
	categories, err := i.categories.List(ctx, true)
	if err != nil {
		return nil, err
	}
	lookup := make(map[string]*domain.Category, len(categories)*2)
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if _, taken := lookup[name]; !taken {
			lookup[name] = c
		}
	}
	for _, c := range categories {
		lookup[c.Slug] = c
	}
	return lookup, nil
}
