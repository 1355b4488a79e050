package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/webhook"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

type eventHandler interface {
	Handle(ctx context.Context, event stripe.Event) webhook.Ack
}

type orderReader interface {
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
}

// Deps groups the collaborators the routes need.
type Deps struct {
	Webhooks         eventHandler
	Orders           orderReader
	WebhookSecret    string
	CORSAllowOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Webhooks == nil {
		return nil, errors.New("webhook handler is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order reader is required")
	}
	if deps.WebhookSecret == "" {
		logger.Warn("STRIPE_WH_SECRET is empty, webhook signatures are not verified")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	router.POST("/checkout/wh/", stripeWebhookHandler(logger, deps.Webhooks, deps.WebhookSecret))

	corsCfg := cors.Config{
		AllowOrigins:  deps.CORSAllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	orders := router.Group("/orders")
	orders.Use(cors.New(corsCfg))
	orders.GET("/:orderNumber", getOrderHandler(logger, deps.Orders))
	orders.OPTIONS("/:orderNumber", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return router, nil
}

// requestLogger emits one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	}
}
