package product

import (
	"context"
	"errors"
	"fmt"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

const productColumns = `id, sku, name, COALESCE(description, ''), price::text, has_sizes, created_at`

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
	if err != nil {
		r.logger.Error("product repo: list", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("product repo: list rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("product repo: list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product repo: get not found", zap.Int64("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("product repo: get", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

// Upsert inserts a product or refreshes the existing row with the same SKU.
// A non-zero ID is honoured so catalog fixtures keep stable ids.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, sku, name, description, price, has_sizes)
VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('products', 'id'))), $2, $3, NULLIF($4, ''), $5::numeric, $6)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    has_sizes = EXCLUDED.has_sizes
RETURNING ` + productColumns
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Price.StringFixed(2),
		product.HasSizes,
	))
	if err != nil {
		r.logger.Error("product repo: upsert", zap.String("sku", product.SKU), zap.Error(err))
		return nil, err
	}
	if product.ID != 0 && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for sku=%s existing_id=%d import_id=%d", product.SKU, res.ID, product.ID)
	}
	if product.ID != 0 {
		// explicit ids bypass the sequence, so move it past them
		if _, err := r.pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1))`); err != nil {
			return nil, fmt.Errorf("product repo: sync id sequence: %w", err)
		}
	}
	r.logger.Debug("product repo: upserted", zap.String("sku", res.SKU), zap.Int64("id", res.ID))
	return res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &price, &p.HasSizes, &p.CreatedAt); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("product %d: parse price %q: %w", p.ID, price, err)
	}
	p.Price = amount
	return &p, nil
}
