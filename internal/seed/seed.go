package seed

import (
	"context"
	"fmt"

	"checkout-webhooks/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type productSeed struct {
	ID          int64
	SKU         string
	Name        string
	Description string
	Price       string
	HasSizes    bool
}

var demoProducts = []productSeed{
	{ID: 1, SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", Price: "19.99", HasSizes: true},
	{ID: 2, SKU: "SKU-DEMO-MUG", Name: "Demo Mug", Description: "Ceramic mug with demo logo", Price: "12.99"},
	{ID: 3, SKU: "SKU-DEMO-HOODIE", Name: "Demo Hoodie", Description: "Heavyweight hoodie", Price: "45.00", HasSizes: true},
	{ID: 4, SKU: "SKU-DEMO-TOTE", Name: "Demo Tote", Description: "Canvas tote bag", Price: "9.50"},
}

// Products returns the demo catalog. Ids are fixed so test carts can
// reference them.
func Products() []domain.Product {
	out := make([]domain.Product, 0, len(demoProducts))
	for _, p := range demoProducts {
		out = append(out, domain.Product{
			ID:          p.ID,
			SKU:         p.SKU,
			Name:        p.Name,
			Description: p.Description,
			Price:       decimal.RequireFromString(p.Price),
			HasSizes:    p.HasSizes,
		})
	}
	return out
}

// Apply upserts the demo catalog for manual testing. It is idempotent by SKU.
func Apply(ctx context.Context, w ProductWriter) (int, error) {
	for _, p := range Products() {
		if _, err := w.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	return len(demoProducts), nil
}
