package webhook

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

func intentEvent(t *testing.T, object string) stripe.Event {
	t.Helper()
	require.True(t, json.Valid([]byte(object)), "fixture must be valid JSON")
	return stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

func TestNormalize(t *testing.T) {
	ev := intentEvent(t, `{
		"id": "pi_3abc",
		"metadata": {"bag": "{\"12\": 3}", "save_info": "true", "username": "ada"},
		"charges": {"data": [
			{"amount": 4599, "billing_details": {"email": "ada@example.com"}},
			{"amount": 1, "billing_details": {"email": "other@example.com"}}
		]},
		"shipping": {
			"name": "Ada Lovelace",
			"phone": "0123",
			"address": {"line1": "1 Analytical Row", "line2": "", "city": "London", "state": "", "postal_code": "N1 9GU", "country": "GB"}
		}
	}`)

	got, err := Normalize(ev)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", got.EventID)
	assert.Equal(t, "payment_intent.succeeded", got.EventType)
	assert.Equal(t, "pi_3abc", got.PaymentID)
	assert.Equal(t, `{"12": 3}`, got.Bag)
	assert.True(t, got.SaveInfo)
	require.NotNil(t, got.Email)
	assert.Equal(t, "ada@example.com", *got.Email)
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("45.99")), got.GrandTotal.String())
	assert.Equal(t, "Ada Lovelace", *got.Shipping.Name)
	assert.Equal(t, "1 Analytical Row", *got.Shipping.Address.Line1)
	assert.Nil(t, got.Shipping.Address.Line2)
	assert.Nil(t, got.Shipping.Address.State)
	assert.Equal(t, "GB", *got.Shipping.Address.Country)
}

func TestNormalizeWithoutShipping(t *testing.T) {
	got, err := Normalize(intentEvent(t, `{
		"id": "pi_noship",
		"metadata": {"bag": "{}"},
		"charges": {"data": [{"amount": 1000, "billing_details": {"email": null}}]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, Shipping{}, got.Shipping)
	assert.Nil(t, got.Email)
	assert.False(t, got.SaveInfo)
	assert.Equal(t, "10.00", got.GrandTotal.StringFixed(2))
}

func TestNormalizeMissingCharges(t *testing.T) {
	for name, object := range map[string]string{
		"empty list": `{"id": "pi_1", "metadata": {}, "charges": {"data": []}}`,
		"absent":     `{"id": "pi_1", "metadata": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Normalize(intentEvent(t, object))
			assert.ErrorIs(t, err, ErrMissingChargeData)
			assert.Equal(t, "pi_1", got.PaymentID)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	_, err := Normalize(stripe.Event{ID: "evt_empty", Type: stripe.EventTypePaymentIntentSucceeded})
	assert.True(t, errors.Is(err, ErrMalformedEvent))

	_, err = Normalize(intentEvent(t, `{"id": 42}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	for _, object := range []string{
		`{"metadata": {"bag": "{\"12\": 1}"}, "charges": {"data": [{"amount": 100}]}}`,
		`{"id": "  ", "charges": {"data": [{"amount": 100}]}}`,
	} {
		_, err = Normalize(intentEvent(t, object))
		assert.ErrorIs(t, err, ErrMalformedEvent, object)
	}
}

func TestParseFlag(t *testing.T) {
	for in, want := range map[string]bool{
		"true": true, "True": true, "1": true, "on": true, "yes": true,
		"false": false, "": false, "off": false, "nope": false,
	} {
		assert.Equal(t, want, parseFlag(in), in)
	}
}
