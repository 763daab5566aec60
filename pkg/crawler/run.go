package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/feed"
	"github.com/opentender/feedcrawler/pkg/lock"
	"github.com/opentender/feedcrawler/pkg/metrics"
)

// Options assembles a crawler process for library users. Only Config and
// Handler are required.
type Options struct {
	Config *config.Config

	// Handler receives every non-empty page.
	Handler DataHandler

	// Init, when set, runs once before crawling starts (schema setup,
	// warm-up fetches). Its error aborts the run.
	Init func(ctx context.Context, client *feed.Client) error

	// Headers are merged into every feed request.
	Headers map[string]string

	// Decoder overrides the response decoder. Default: encoding/json.
	Decoder feed.Decoder

	// Recorder collects metrics; nil disables collection.
	Recorder metrics.Recorder
}

// Run builds the feed session, the position store and (when enabled) the
// process lock, then crawls until ctx is cancelled. This is the single
// entrypoint for both the bundled binary and library users.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config

	client, err := feed.NewClient(feed.Options{
		Host:      cfg.API.Host,
		FeedURL:   cfg.API.ResourceURL(),
		Token:     cfg.API.Token,
		UserAgent: cfg.API.UserAgent,
		Headers:   opts.Headers,
		Decode:    opts.Decoder,
	})
	if err != nil {
		return fmt.Errorf("failed to build feed client: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("failed to close position store", "error", err)
		}
	}()

	if opts.Init != nil {
		if err := opts.Init(ctx, client); err != nil {
			return fmt.Errorf("init task failed: %w", err)
		}
	}

	sup := NewSupervisor(client, store, opts.Handler, cfg, opts.Recorder)

	if !cfg.Lock.Enabled {
		return sup.Run(ctx)
	}

	lockStore, err := lock.OpenMongo(ctx, cfg.Mongo, cfg.Lock.Collection)
	if err != nil {
		return fmt.Errorf("failed to open lock store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lockStore.Close(closeCtx); err != nil {
			logger.Error("failed to close lock store", "error", err)
		}
	}()

	return lock.RunLocked(ctx, lock.New(lockStore, cfg.Lock, cfg.Intervals.DBError), sup.Run)
}
