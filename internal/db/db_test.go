package db

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig("postgres://u:p@db.internal:5432/checkout?sslmode=disable", PoolOptions{MaxConns: 8, MinConns: 2})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxConns != 8 || cfg.MinConns != 2 {
		t.Fatalf("unexpected pool sizes max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxConnLifetime != 30*time.Minute {
		t.Fatalf("unexpected lifetime %s", cfg.MaxConnLifetime)
	}
	if cfg.ConnConfig.Database != "checkout" {
		t.Fatalf("unexpected database %q", cfg.ConnConfig.Database)
	}
}

func TestParseConfigRejectsMinAboveMax(t *testing.T) {
	cfg, err := parseConfig("postgres://u:p@localhost/checkout", PoolOptions{MaxConns: 2, MinConns: 5})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MinConns != 0 {
		t.Fatalf("expected min conns untouched, got %d", cfg.MinConns)
	}
}

func TestParseConfigInvalidDSN(t *testing.T) {
	if _, err := parseConfig("postgres://%zz", PoolOptions{}); err == nil {
		t.Fatalf("expected error for invalid dsn")
	}
}

func TestConnect(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := Connect(context.Background(), dsn, PoolOptions{MaxConns: 2}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	pool.Close()
}
