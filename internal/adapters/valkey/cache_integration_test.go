//go:build integration

package valkey_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/flightmap/internal/adapters/valkey"
	"github.com/samirrijal/flightmap/internal/pkg/config"
)

func setupCache(t *testing.T) *valkey.Cache {
	t.Helper()
	cfg, err := config.Load("flightmap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c, err := valkey.New(cfg.Valkey.Addr, "flightmap-test")
	if err != nil {
		t.Fatalf("connect valkey: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCache_SetGetDelete(t *testing.T) {
	c := setupCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := c.Set(ctx, "geocode:london", []byte(`{"lat":51.5,"lon":-0.12}`), 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := c.Get(ctx, "geocode:london")
	if err != nil || string(b) != `{"lat":51.5,"lon":-0.12}` {
		t.Fatalf("get = %q, %v", b, err)
	}
	if err := c.Delete(ctx, "geocode:london"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "geocode:london"); !errors.Is(err, valkey.ErrMiss) {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}
}
