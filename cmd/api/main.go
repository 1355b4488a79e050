package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkout-webhooks/internal/config"
	"checkout-webhooks/internal/db"
	"checkout-webhooks/internal/httpserver"
	"checkout-webhooks/internal/logging"
	orderrepo "checkout-webhooks/internal/repository/order"
	productrepo "checkout-webhooks/internal/repository/product"
	"checkout-webhooks/internal/seed"
	"checkout-webhooks/internal/service/reconcile"
	"checkout-webhooks/internal/tracing"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogEnv, "api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "checkout-webhooks",
		Endpoint:    cfg.OTLPEndpoint,
		Probability: 1,
	}, logger)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	var (
		dbpool   *pgxpool.Pool
		orders   orderrepo.Repository
		products productrepo.Repository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		catalog := productrepo.NewMemory()
		if _, err := seed.Apply(ctx, catalog); err != nil {
			logger.Fatal("seed memory catalog", zap.Error(err))
		}
		orders = orderrepo.NewMemory()
		products = catalog
		logger.Warn("using in-memory store, orders are lost on restart")
	case config.StoreDriverPostgres:
		dbpool, err = db.Connect(ctx, cfg.DBConnString, db.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		}, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer dbpool.Close()
		orders = orderrepo.NewPostgres(dbpool, logger)
		products = productrepo.NewPostgres(dbpool, logger)
	default:
		logger.Fatal("unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
	}

	reconciler := reconcile.New(orders, products, reconcile.Options{
		MatchAttempts:    cfg.MatchAttempts,
		MatchBackoffUnit: cfg.MatchBackoffUnit,
		Timeout:          cfg.WebhookTimeout,
	}, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Webhooks:         reconciler,
		Orders:           orders,
		WebhookSecret:    cfg.StripeWebhookSecret,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
}
