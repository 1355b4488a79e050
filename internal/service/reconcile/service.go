// Package reconcile makes sure every succeeded Stripe payment ends up with
// exactly one order, whether the checkout page or the webhook writes it.
package reconcile

import (
	"context"
	"errors"
	"time"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/logging"
	orderrepo "checkout-webhooks/internal/repository/order"
	"checkout-webhooks/internal/webhook"
	"github.com/stripe/stripe-go/v80"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "checkout-webhooks/reconcile"

type handlerFunc func(ctx context.Context, event stripe.Event) webhook.Ack

type Options struct {
	MatchAttempts    int
	MatchBackoffUnit time.Duration
	// Timeout bounds the handling of one event; zero means no limit.
	Timeout time.Duration
}

type Service struct {
	matcher      *Matcher
	materializer *Materializer
	handlers     map[stripe.EventType]handlerFunc
	timeout      time.Duration
	tracer       trace.Tracer
	logger       *zap.Logger
}

type orderStore interface {
	orderFinder
	orderWriter
}

func New(orders orderStore, products productGetter, opts Options, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	s := &Service{
		matcher:      NewMatcher(orders, opts.MatchAttempts, opts.MatchBackoffUnit, logger),
		materializer: NewMaterializer(orders, products, logger),
		timeout:      opts.Timeout,
		tracer:       otel.Tracer(tracerName),
		logger:       logger,
	}
	s.handlers = map[stripe.EventType]handlerFunc{
		stripe.EventTypePaymentIntentSucceeded:     s.handlePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed: s.handlePaymentIntentPaymentFailed,
	}
	return s
}

var _ orderStore = (orderrepo.Repository)(nil)

// Handle dispatches event by type and always returns an acknowledgment;
// failures are reported in it rather than returned.
func (s *Service) Handle(ctx context.Context, event stripe.Event) webhook.Ack {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "webhook.handle", trace.WithAttributes(
		attribute.String("stripe.event_id", event.ID),
		attribute.String("stripe.event_type", string(event.Type)),
	))
	defer span.End()

	handler, ok := s.handlers[event.Type]
	if !ok {
		handler = s.handleUnknown
	}
	ack := handler(ctx, event)

	span.SetAttributes(
		attribute.String("webhook.outcome", ack.Outcome.String()),
		attribute.Int("http.status_code", ack.Status),
	)
	if ack.Status >= 500 {
		span.SetStatus(codes.Error, ack.Body)
	}
	return ack
}

func (s *Service) handleUnknown(_ context.Context, event stripe.Event) webhook.Ack {
	s.logger.Info("unhandled webhook event type",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)
	return webhook.Report(string(event.Type), webhook.OutcomeUnhandled, nil)
}

func (s *Service) handlePaymentIntentPaymentFailed(_ context.Context, event stripe.Event) webhook.Ack {
	s.logger.Info("payment failed", zap.String("event_id", event.ID))
	return webhook.Report(string(event.Type), webhook.OutcomePaymentFailed, nil)
}

func (s *Service) handlePaymentIntentSucceeded(ctx context.Context, event stripe.Event) webhook.Ack {
	eventType := string(event.Type)

	ev, err := webhook.Normalize(event)
	if err != nil {
		if errors.Is(err, webhook.ErrMissingChargeData) {
			s.logger.Error("payment intent has no charges",
				zap.String("event_id", event.ID),
				zap.String("stripe_pid", ev.PaymentID),
			)
			return webhook.Report(eventType, webhook.OutcomeMissingCharge, err)
		}
		s.logger.Error("normalize payment intent", zap.String("event_id", event.ID), zap.Error(err))
		return webhook.Report(eventType, webhook.OutcomeFailed, err)
	}
	log := s.logger.With(zap.String("event_id", ev.EventID), zap.String("stripe_pid", ev.PaymentID))
	log.Debug("normalized payment intent", zap.Bool("save_info", ev.SaveInfo), zap.String("grand_total", ev.GrandTotal.StringFixed(2)))

	matchCtx, matchSpan := s.tracer.Start(ctx, "webhook.match")
	existing, err := s.matcher.Find(matchCtx, ev)
	matchSpan.SetAttributes(attribute.Bool("webhook.matched", existing != nil))
	matchSpan.End()
	if err != nil {
		log.Error("look up existing order", zap.Error(err))
		return webhook.Report(eventType, webhook.OutcomeFailed, err)
	}
	if existing != nil {
		return webhook.Report(eventType, webhook.OutcomeVerified, nil)
	}

	createCtx, createSpan := s.tracer.Start(ctx, "webhook.materialize")
	_, err = s.materializer.Create(createCtx, ev)
	if err != nil {
		createSpan.RecordError(err)
	}
	createSpan.End()
	switch {
	case err == nil:
		return webhook.Report(eventType, webhook.OutcomeCreated, nil)
	case errors.Is(err, domain.ErrDuplicate):
		// the checkout path committed between our last lookup and the insert
		log.Info("order committed concurrently, treating as verified")
		return webhook.Report(eventType, webhook.OutcomeVerified, nil)
	default:
		log.Error("materialize order", zap.Error(err))
		return webhook.Report(eventType, webhook.OutcomeFailed, err)
	}
}
