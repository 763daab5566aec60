package crawler

import (
	"context"
	"errors"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/position"
	mongostore "github.com/opentender/feedcrawler/pkg/position/mongo"
	pgstore "github.com/opentender/feedcrawler/pkg/position/postgres"
)

// ErrNoStoreConfigured is returned when neither position backend is set up.
var ErrNoStoreConfigured = errors.New("no position store configured: set mongo.url or postgres.host")

// OpenStore selects and opens the position backend: the document store when a
// MongoDB URL is configured, else the relational store when a PostgreSQL host
// is, else an error. The date-modified barrier needs the latch, which the
// relational backend cannot hold, so that combination is refused here rather
// than failing mid-crawl.
func OpenStore(ctx context.Context, cfg *config.Config) (position.Store, error) {
	switch {
	case cfg.Mongo.URL != "":
		store, err := mongostore.Open(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		logger.Info("using document position store", "database", cfg.Mongo.Database, "state_id", cfg.Mongo.StateID)
		return store, nil

	case cfg.Postgres.Host != "":
		if cfg.DateModified.LockEnabled {
			return nil, errors.New("date_modified.lock_enabled requires the document position store")
		}
		store, err := pgstore.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		logger.Info("using relational position store", "database", cfg.Postgres.Database, "state_id", cfg.Postgres.StateID)
		return store, nil

	default:
		return nil, ErrNoStoreConfigured
	}
}
