package webhook

import (
	"fmt"
	"net/http"
)

type Outcome int

const (
	OutcomeUnhandled Outcome = iota
	OutcomePaymentFailed
	OutcomeVerified
	OutcomeCreated
	OutcomeMissingCharge
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnhandled:
		return "unhandled"
	case OutcomePaymentFailed:
		return "payment_failed"
	case OutcomeVerified:
		return "verified"
	case OutcomeCreated:
		return "created"
	case OutcomeMissingCharge:
		return "missing_charge"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Ack is what Stripe sees. A 500 asks Stripe to redeliver later; anything
// answered with 200 is final.
type Ack struct {
	Outcome Outcome
	Status  int
	Body    string
}

// Report builds the acknowledgment for eventType. err is only rendered for
// OutcomeFailed.
func Report(eventType string, outcome Outcome, err error) Ack {
	status := http.StatusOK
	var detail string
	switch outcome {
	case OutcomeUnhandled:
		detail = "UNHANDLED: No handler for this event type"
	case OutcomePaymentFailed:
		detail = "SUCCESS: Payment failure acknowledged"
	case OutcomeVerified:
		detail = "SUCCESS: Verified order already in database"
	case OutcomeCreated:
		detail = "SUCCESS: Created order in webhook"
	case OutcomeMissingCharge:
		status = http.StatusInternalServerError
		detail = "ERROR: " + ErrMissingChargeData.Error()
	default:
		status = http.StatusInternalServerError
		if err == nil {
			detail = "ERROR: unknown failure"
		} else {
			detail = "ERROR: " + err.Error()
		}
	}
	return Ack{
		Outcome: outcome,
		Status:  status,
		Body:    fmt.Sprintf("Webhook received: %s | %s", eventType, detail),
	}
}
