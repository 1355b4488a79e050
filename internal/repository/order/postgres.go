package order

import (
	"context"
	"errors"
	"fmt"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

const orderColumns = `id::text, order_number, full_name, email, phone_number, country, postcode, town_or_city,
street_address1, street_address2, county, original_bag, stripe_pid, order_total::text, grand_total::text, created_at`

func (r *postgresRepo) FindMatch(ctx context.Context, c MatchCriteria) (*domain.Order, error) {
	const q = `
SELECT ` + orderColumns + `
FROM orders
WHERE stripe_pid = $1
  AND original_bag = $2
  AND grand_total = $3::numeric
  AND ((full_name IS NULL AND $4::text IS NULL) OR lower(full_name) = lower($4::text))
  AND ((email IS NULL AND $5::text IS NULL) OR lower(email) = lower($5::text))
  AND ((phone_number IS NULL AND $6::text IS NULL) OR lower(phone_number) = lower($6::text))
  AND ((country IS NULL AND $7::text IS NULL) OR lower(country) = lower($7::text))
  AND ((postcode IS NULL AND $8::text IS NULL) OR lower(postcode) = lower($8::text))
  AND ((town_or_city IS NULL AND $9::text IS NULL) OR lower(town_or_city) = lower($9::text))
  AND ((street_address1 IS NULL AND $10::text IS NULL) OR lower(street_address1) = lower($10::text))
  AND ((street_address2 IS NULL AND $11::text IS NULL) OR lower(street_address2) = lower($11::text))
  AND ((county IS NULL AND $12::text IS NULL) OR lower(county) = lower($12::text))
ORDER BY created_at ASC
LIMIT 1
`
	o, err := scanOrder(r.pool.QueryRow(ctx, q,
		c.StripePID,
		c.OriginalBag,
		c.GrandTotal.StringFixed(2),
		c.FullName,
		c.Email,
		c.PhoneNumber,
		c.Country,
		c.Postcode,
		c.TownOrCity,
		c.StreetAddress1,
		c.StreetAddress2,
		c.County,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("order repo: find match", zap.String("stripe_pid", c.StripePID), zap.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT id::text, order_id::text, product_id, product_size, quantity, lineitem_total::text, created_at
FROM order_line_items
WHERE order_id = $1
ORDER BY created_at ASC, product_id ASC, product_size ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line  domain.OrderLineItem
			total string
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.ProductSize, &line.Quantity, &total, &line.CreatedAt); err != nil {
			return nil, err
		}
		if line.LineItemTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("line item %s: parse total: %w", line.ID, err)
		}
		o.LineItems = append(o.LineItems, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	const q = `
INSERT INTO orders (order_number, full_name, email, phone_number, country, postcode, town_or_city,
    street_address1, street_address2, county, original_bag, stripe_pid, grand_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric)
RETURNING ` + orderColumns
	o, err := scanOrder(t.tx.QueryRow(ctx, q,
		in.OrderNumber,
		in.FullName,
		in.Email,
		in.PhoneNumber,
		in.Country,
		in.Postcode,
		in.TownOrCity,
		in.StreetAddress1,
		in.StreetAddress2,
		in.County,
		in.OriginalBag,
		in.StripePID,
		in.GrandTotal.StringFixed(2),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("order for %s: %w", in.StripePID, domain.ErrDuplicate)
		}
		return nil, err
	}
	return o, nil
}

func (t *postgresTx) AddLineItem(ctx context.Context, in AddLineItemInput) (*domain.OrderLineItem, error) {
	const q = `
INSERT INTO order_line_items (order_id, product_id, product_size, quantity, lineitem_total)
VALUES ($1, $2, $3, $4, $5::numeric)
RETURNING id::text, created_at
`
	line := domain.OrderLineItem{
		OrderID:       in.OrderID,
		ProductID:     in.Product.ID,
		ProductSize:   in.ProductSize,
		Quantity:      in.Quantity,
		LineItemTotal: lineItemTotal(in.Product, in.Quantity),
	}
	if err := t.tx.QueryRow(ctx, q,
		line.OrderID,
		line.ProductID,
		line.ProductSize,
		line.Quantity,
		line.LineItemTotal.StringFixed(2),
	).Scan(&line.ID, &line.CreatedAt); err != nil {
		return nil, err
	}

	if err := updateOrderTotal(ctx, t.tx, in.OrderID); err != nil {
		return nil, err
	}
	return &line, nil
}

func updateOrderTotal(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
UPDATE orders
SET order_total = COALESCE((
	SELECT SUM(lineitem_total)
	FROM order_line_items
	WHERE order_id = $1
), 0)
WHERE id = $1
`, orderID)
	return err
}

func lineItemTotal(p domain.Product, quantity int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                 domain.Order
		orderTotal, grand string
	)
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.FullName,
		&o.Email,
		&o.PhoneNumber,
		&o.Country,
		&o.Postcode,
		&o.TownOrCity,
		&o.StreetAddress1,
		&o.StreetAddress2,
		&o.County,
		&o.OriginalBag,
		&o.StripePID,
		&orderTotal,
		&grand,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if o.OrderTotal, err = decimal.NewFromString(orderTotal); err != nil {
		return nil, fmt.Errorf("order %s: parse order_total: %w", o.ID, err)
	}
	if o.GrandTotal, err = decimal.NewFromString(grand); err != nil {
		return nil, fmt.Errorf("order %s: parse grand_total: %w", o.ID, err)
	}
	return &o, nil
}
