package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"checkout-webhooks/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,sku,name,description,price,has_sizes
12,MUG-12,Enamel mug,Camping mug,12.5,false
,TEE-40,Logo tee,"Cotton, heavyweight",19.99,true
,,,,,
7,TOTE-7,Tote,,9.50,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 products imported, got %d", count)
	}
	if len(repo.items) != 3 {
		t.Fatalf("expected 3 products saved, got %d", len(repo.items))
	}

	mug := repo.items[0]
	if mug.ID != 12 || mug.SKU != "MUG-12" || mug.Price.StringFixed(2) != "12.50" || mug.HasSizes {
		t.Fatalf("unexpected product data: %+v", mug)
	}
	tee := repo.items[1]
	if tee.ID != 0 || !tee.HasSizes || tee.Description != "Cotton, heavyweight" {
		t.Fatalf("unexpected product data: %+v", tee)
	}
	if repo.items[2].HasSizes || repo.items[2].ID != 7 {
		t.Fatalf("unexpected product data: %+v", repo.items[2])
	}
}

func TestCSVImporter_MissingColumn(t *testing.T) {
	imp := NewCSVImporter(strings.NewReader("sku,name\nA,B\n"), &stubProductRepo{})
	if _, err := imp.Run(context.Background()); err == nil || !strings.Contains(err.Error(), `"price"`) {
		t.Fatalf("expected missing price column error, got %v", err)
	}
}

func TestCSVImporter_InvalidRows(t *testing.T) {
	cases := map[string]string{
		"bad price":     "sku,name,price\nA,Alpha,abc\n",
		"negative":      "sku,name,price\nA,Alpha,-1\n",
		"missing name":  "sku,name,price\nA,,1.00\n",
		"bad id":        "id,sku,name,price\nx,A,Alpha,1.00\n",
		"bad has_sizes": "sku,name,price,has_sizes\nA,Alpha,1.00,maybe\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			count, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Fatalf("expected line number in %v", err)
			}
			if count != 0 || len(repo.items) != 0 {
				t.Fatalf("expected nothing imported")
			}
		})
	}
}

func TestCSVImporter_UpsertError(t *testing.T) {
	repo := &stubProductRepo{err: errors.New("db down")}
	_, err := NewCSVImporter(strings.NewReader("sku,name,price\nA,Alpha,1.00\n"), repo).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected upsert error, got %v", err)
	}
}
