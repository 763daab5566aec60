package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/crawler"
	"github.com/opentender/feedcrawler/pkg/feed"
	"github.com/opentender/feedcrawler/pkg/metrics"
	promrecorder "github.com/opentender/feedcrawler/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the feed crawler",
	Long: `Start crawling the configured changes feed.

The crawler resumes from the persisted position when one exists, otherwise it
probes the feed head for initial offsets. SIGINT and SIGTERM trigger a
graceful drain.

Examples:
  # Start with the default config location
  feedcrawler start

  # Start with a custom config
  feedcrawler start --config /etc/feedcrawler/config.yaml

  # Start with environment overrides only
  CRAWLER_API_HOST=https://public-api.example.com feedcrawler start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(ConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	for _, warning := range cfg.DefaultWarnings() {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		rec := promrecorder.NewRecorder()
		recorder = rec

		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	logger.Info("starting feed crawler",
		"version", Version,
		"feed_url", cfg.API.ResourceURL(),
	)

	return crawler.Run(ctx, crawler.Options{
		Config:   cfg,
		Handler:  logPages,
		Recorder: recorder,
	})
}

// logPages is the bundled data handler: it only logs what arrives. Real
// consumers embed the crawler as a library and bring their own handler.
func logPages(ctx context.Context, client *feed.Client, items []feed.Item) error {
	for _, item := range items {
		logger.Info("feed item",
			"id", item.ID,
			"date_modified", item.DateModified,
			"status", item.Status,
		)
	}
	return nil
}
