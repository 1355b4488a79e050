package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the header of a paid checkout. Contact and address fields are
// nullable; an absent value is stored as NULL, never as an empty string.
type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	FullName       *string         `json:"fullName"`
	Email          *string         `json:"email"`
	PhoneNumber    *string         `json:"phoneNumber"`
	Country        *string         `json:"country"`
	Postcode       *string         `json:"postcode"`
	TownOrCity     *string         `json:"townOrCity"`
	StreetAddress1 *string         `json:"streetAddress1"`
	StreetAddress2 *string         `json:"streetAddress2"`
	County         *string         `json:"county"`
	OriginalBag    string          `json:"originalBag"`
	StripePID      string          `json:"stripePid"`
	OrderTotal     decimal.Decimal `json:"orderTotal"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	CreatedAt      time.Time       `json:"createdAt"`
	LineItems      []OrderLineItem `json:"lineItems,omitempty"`
}

type OrderLineItem struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	ProductID     int64           `json:"productId"`
	ProductSize   *string         `json:"productSize,omitempty"`
	Quantity      int             `json:"quantity"`
	LineItemTotal decimal.Decimal `json:"lineItemTotal"`
	CreatedAt     time.Time       `json:"createdAt"`
}
