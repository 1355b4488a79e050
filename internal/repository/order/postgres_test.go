package order

import (
	"context"
	"errors"
	"os"
	"testing"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func TestPostgres_CreateMatchAndGet(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)
	product := insertProduct(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	in := sampleInput()

	err := repo.InTx(ctx, func(tx Tx) error {
		o, err := tx.Create(ctx, in)
		if err != nil {
			return err
		}
		_, err = tx.AddLineItem(ctx, AddLineItemInput{OrderID: o.ID, Product: product, Quantity: 3})
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	c := criteriaFor(in)
	c.Email = strPtr("ADA@EXAMPLE.COM")
	found, err := repo.FindMatch(ctx, c)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if found.StreetAddress2 != nil {
		t.Fatalf("expected NULL street_address2, got %q", *found.StreetAddress2)
	}

	got, err := repo.GetByNumber(ctx, in.OrderNumber)
	if err != nil {
		t.Fatalf("GetByNumber: %v", err)
	}
	if len(got.LineItems) != 1 || got.LineItems[0].Quantity != 3 || got.LineItems[0].ProductSize != nil {
		t.Fatalf("unexpected line items %+v", got.LineItems)
	}
	if !got.OrderTotal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected order total 30.00, got %s", got.OrderTotal)
	}

	c.StreetAddress2 = strPtr("somewhere")
	if _, err := repo.FindMatch(ctx, c); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	missing := domain.Product{ID: 999, Price: decimal.RequireFromString("1")}

	err := repo.InTx(ctx, func(tx Tx) error {
		o, err := tx.Create(ctx, sampleInput())
		if err != nil {
			return err
		}
		_, err = tx.AddLineItem(ctx, AddLineItemInput{OrderID: o.ID, Product: missing, Quantity: 1})
		return err
	})
	if err == nil {
		t.Fatalf("expected foreign key failure")
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no orders, got %d", count)
	}
}

func TestPostgres_DuplicatePaymentReference(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	first := sampleInput()
	second := sampleInput()
	second.OrderNumber = "OTHER"

	for i, in := range []CreateOrderInput{first, second} {
		err := repo.InTx(ctx, func(tx Tx) error {
			_, err := tx.Create(ctx, in)
			return err
		})
		if i == 0 && err != nil {
			t.Fatalf("first create: %v", err)
		}
		if i == 1 && !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	}
}

func insertProduct(ctx context.Context, t *testing.T, pool *pgxpool.Pool) domain.Product {
	t.Helper()
	p := domain.Product{Price: decimal.RequireFromString("10.00")}
	err := pool.QueryRow(ctx, `INSERT INTO products (sku, name, price) VALUES ('SKU-1', 'Prod 1', 10.00) RETURNING id`).Scan(&p.ID)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return p
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE order_line_items, orders, products RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
