package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
)

var (
	// ErrMissingChargeData means the payment intent carried no charge records.
	ErrMissingChargeData = errors.New("no charges found in PaymentIntent")
	// ErrMalformedEvent means the event object could not be decoded.
	ErrMalformedEvent = errors.New("malformed event payload")
)

// NormalizedEvent is the provider-independent view of a succeeded payment.
type NormalizedEvent struct {
	EventID    string
	EventType  string
	PaymentID  string
	Bag        string
	SaveInfo   bool
	Email      *string
	Shipping   Shipping
	GrandTotal decimal.Decimal
}

type Shipping struct {
	Name    *string
	Phone   *string
	Address Address
}

type Address struct {
	Line1      *string
	Line2      *string
	City       *string
	State      *string
	PostalCode *string
	Country    *string
}

// The charges list was dropped from stripe-go's PaymentIntent, so the intent
// is decoded into the subset of fields used here.
type paymentIntentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Charges  *struct {
		Data []chargeObject `json:"data"`
	} `json:"charges"`
	Shipping *shippingObject `json:"shipping"`
}

type chargeObject struct {
	Amount         int64 `json:"amount"`
	BillingDetails struct {
		Email *string `json:"email"`
	} `json:"billing_details"`
}

type shippingObject struct {
	Name    *string            `json:"name"`
	Phone   *string            `json:"phone"`
	Address map[string]*string `json:"address"`
}

// Normalize extracts the reconciliation fields from a payment_intent event.
// The grand total is the first charge's amount in minor units divided by 100.
func Normalize(event stripe.Event) (NormalizedEvent, error) {
	out := NormalizedEvent{EventID: event.ID, EventType: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, fmt.Errorf("%w: event %s has no data object", ErrMalformedEvent, event.ID)
	}

	var intent paymentIntentObject
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if strings.TrimSpace(intent.ID) == "" {
		return out, fmt.Errorf("%w: event %s has no payment intent id", ErrMalformedEvent, event.ID)
	}
	out.PaymentID = intent.ID
	out.Bag = intent.Metadata["bag"]
	out.SaveInfo = parseFlag(intent.Metadata["save_info"])

	if intent.Charges == nil || len(intent.Charges.Data) == 0 {
		return out, ErrMissingChargeData
	}
	charge := intent.Charges.Data[0]
	out.Email = charge.BillingDetails.Email
	out.GrandTotal = decimal.NewFromInt(charge.Amount).Div(decimal.NewFromInt(100)).Round(2)

	if intent.Shipping != nil {
		out.Shipping.Name = intent.Shipping.Name
		out.Shipping.Phone = intent.Shipping.Phone
		out.Shipping.Address = addressFromMap(SanitizeAddress(intent.Shipping.Address))
	}
	return out, nil
}

func addressFromMap(m map[string]*string) Address {
	return Address{
		Line1:      m["line1"],
		Line2:      m["line2"],
		City:       m["city"],
		State:      m["state"],
		PostalCode: m["postal_code"],
		Country:    m["country"],
	}
}

// parseFlag accepts the values a checkout form or Stripe metadata produce.
func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "on", "yes":
		return true
	}
	return false
}
