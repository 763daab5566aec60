package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/opentender/feedcrawler/pkg/config"
)

func TestOpenStoreRequiresABackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{})
	if !errors.Is(err, ErrNoStoreConfigured) {
		t.Fatalf("err = %v, want ErrNoStoreConfigured", err)
	}
}

func TestOpenStoreRejectsBarrierOnRelationalBackend(t *testing.T) {
	cfg := &config.Config{
		Postgres:     config.PostgresConfig{Host: "localhost"},
		DateModified: config.DateModifiedConfig{LockEnabled: true},
	}
	_, err := OpenStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error: the relational backend cannot hold the latch")
	}
}
