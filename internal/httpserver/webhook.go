package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	stripewebhook "github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

func stripeWebhookHandler(logger *zap.Logger, handler eventHandler, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
		if err != nil {
			logger.Warn("read webhook body", zap.Error(err))
			c.String(http.StatusBadRequest, "Unable to read request body")
			return
		}
		if len(payload) > maxWebhookBodyBytes {
			c.String(http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		var event stripe.Event
		if secret == "" {
			if err := json.Unmarshal(payload, &event); err != nil {
				logger.Warn("decode webhook payload", zap.Error(err))
				c.String(http.StatusBadRequest, "Invalid payload")
				return
			}
		} else {
			event, err = stripewebhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), secret,
				stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
			if err != nil {
				logger.Warn("stripe webhook signature verification failed", zap.Error(err))
				c.String(http.StatusBadRequest, "Invalid signature")
				return
			}
		}

		logger.Info("processing stripe webhook",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		// Stripe hanging up must not abandon reconciliation mid-backoff.
		ack := handler.Handle(context.WithoutCancel(c.Request.Context()), event)
		c.String(ack.Status, ack.Body)
	}
}
