package order

import (
	"context"

	"checkout-webhooks/internal/domain"
	"github.com/shopspring/decimal"
)

// MatchCriteria identifies an order by everything a checkout writes.
// Text fields compare case-insensitively and a nil value only matches NULL.
type MatchCriteria struct {
	FullName       *string
	Email          *string
	PhoneNumber    *string
	Country        *string
	Postcode       *string
	TownOrCity     *string
	StreetAddress1 *string
	StreetAddress2 *string
	County         *string
	GrandTotal     decimal.Decimal
	OriginalBag    string
	StripePID      string
}

type CreateOrderInput struct {
	OrderNumber    string
	FullName       *string
	Email          *string
	PhoneNumber    *string
	Country        *string
	Postcode       *string
	TownOrCity     *string
	StreetAddress1 *string
	StreetAddress2 *string
	County         *string
	GrandTotal     decimal.Decimal
	OriginalBag    string
	StripePID      string
}

type AddLineItemInput struct {
	OrderID     string
	Product     domain.Product
	ProductSize *string
	Quantity    int
}

type Repository interface {
	FindMatch(ctx context.Context, c MatchCriteria) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	// InTx runs fn as one unit: either every write made through the Tx
	// is kept or none are.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of an order, only reachable inside Repository.InTx.
type Tx interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	AddLineItem(ctx context.Context, in AddLineItemInput) (*domain.OrderLineItem, error)
}
