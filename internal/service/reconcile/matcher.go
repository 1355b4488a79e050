package reconcile

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/logging"
	orderrepo "checkout-webhooks/internal/repository/order"
	"checkout-webhooks/internal/webhook"
	"go.uber.org/zap"
)

const (
	DefaultMatchAttempts    = 5
	DefaultMatchBackoffUnit = time.Second
)

type orderFinder interface {
	FindMatch(ctx context.Context, c orderrepo.MatchCriteria) (*domain.Order, error)
}

// Matcher looks for an order the synchronous checkout already wrote. That
// write may not be visible yet, so a miss is retried with exponential
// backoff plus jitter before giving up.
type Matcher struct {
	orders   orderFinder
	attempts int
	unit     time.Duration
	jitter   func() float64
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

func NewMatcher(orders orderFinder, attempts int, unit time.Duration, logger *zap.Logger) *Matcher {
	if attempts <= 0 {
		attempts = DefaultMatchAttempts
	}
	if unit < 0 {
		unit = DefaultMatchBackoffUnit
	}
	return &Matcher{
		orders:   orders,
		attempts: attempts,
		unit:     unit,
		jitter:   rand.Float64,
		sleep:    sleepContext,
		logger:   logging.OrNop(logger),
	}
}

// Find returns the matching order, or nil with a nil error once every
// attempt missed. Store failures other than not-found end the search.
func (m *Matcher) Find(ctx context.Context, ev webhook.NormalizedEvent) (*domain.Order, error) {
	criteria := criteriaFromEvent(ev)
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 {
			wait := m.backoff(attempt)
			m.logger.Debug("order not visible yet, backing off",
				zap.String("stripe_pid", ev.PaymentID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			if err := m.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		order, err := m.orders.FindMatch(ctx, criteria)
		if err == nil {
			m.logger.Info("matched existing order",
				zap.String("stripe_pid", ev.PaymentID),
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt),
			)
			return order, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// backoff is unit * (2^attempt + jitter) with jitter in [0, 1).
func (m *Matcher) backoff(attempt int) time.Duration {
	factor := math.Pow(2, float64(attempt)) + m.jitter()
	return time.Duration(factor * float64(m.unit))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func criteriaFromEvent(ev webhook.NormalizedEvent) orderrepo.MatchCriteria {
	addr := ev.Shipping.Address
	return orderrepo.MatchCriteria{
		FullName:       ev.Shipping.Name,
		Email:          ev.Email,
		PhoneNumber:    ev.Shipping.Phone,
		Country:        addr.Country,
		Postcode:       addr.PostalCode,
		TownOrCity:     addr.City,
		StreetAddress1: addr.Line1,
		StreetAddress2: addr.Line2,
		County:         addr.State,
		GrandTotal:     ev.GrandTotal,
		OriginalBag:    ev.Bag,
		StripePID:      ev.PaymentID,
	}
}
