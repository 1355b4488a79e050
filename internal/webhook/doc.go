// Package webhook turns Stripe payment intent events into the fields an
// order is reconciled on, and maps reconciliation outcomes back to the
// plain-text acknowledgment Stripe expects.
package webhook
