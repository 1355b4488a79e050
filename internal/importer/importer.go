package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"checkout-webhooks/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads a product catalog CSV and inserts/updates products.
// Required columns are sku, name and price; id, description and has_sizes
// are optional.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

type csvRow struct {
	ID       int64
	SKU      string
	Name     string
	Desc     string
	Price    decimal.Decimal
	HasSizes bool
}

// Run parses CSV rows and upserts one product per row. Blank rows are skipped.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range []string{"sku", "name", "price"} {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing required column %q", col)
		}
	}

	var imported int
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(record, index, line)
		if err != nil {
			return imported, err
		}
		if row == nil {
			continue
		}
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p := domain.Product{
		ID:          row.ID,
		SKU:         row.SKU,
		Name:        row.Name,
		Description: row.Desc,
		Price:       row.Price,
		HasSizes:    row.HasSizes,
	}

	_, err := i.productRepo.Upsert(ctx, p)
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", row.SKU, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int, line int) (*csvRow, error) {
	sku := pick(record, index, "sku")
	name := pick(record, index, "name")
	priceStr := pick(record, index, "price")
	idStr := pick(record, index, "id")

	if sku == "" && name == "" && priceStr == "" && idStr == "" {
		return nil, nil
	}
	if sku == "" || name == "" || priceStr == "" {
		return nil, fmt.Errorf("line %d: invalid product row (missing required fields) for sku %q", line, sku)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("line %d: invalid price %q for sku %q", line, priceStr, sku)
	}

	row := &csvRow{
		SKU:   sku,
		Name:  name,
		Desc:  pick(record, index, "description"),
		Price: price.Round(2),
	}
	if idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("line %d: invalid id for sku %q: %s", line, sku, idStr)
		}
		row.ID = id
	}
	if v := pick(record, index, "has_sizes"); v != "" {
		hasSizes, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid has_sizes for sku %q: %s", line, sku, v)
		}
		row.HasSizes = hasSizes
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
