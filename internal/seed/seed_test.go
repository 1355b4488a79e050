package seed

import (
	"context"
	"testing"

	productrepo "checkout-webhooks/internal/repository/product"
)

func TestApplyIsIdempotent(t *testing.T) {
	repo := productrepo.NewMemory()
	ctx := context.Background()

	for range 2 {
		n, err := Apply(ctx, repo)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if n != len(demoProducts) {
			t.Fatalf("expected %d products, got %d", len(demoProducts), n)
		}
	}

	products, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != len(demoProducts) {
		t.Fatalf("expected %d stored products, got %d", len(demoProducts), len(products))
	}
	mug, err := repo.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("get mug: %v", err)
	}
	if mug.SKU != "SKU-DEMO-MUG" || mug.Price.StringFixed(2) != "12.99" || mug.HasSizes {
		t.Fatalf("unexpected mug: %+v", mug)
	}
}
