package crawler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/feed"
	"github.com/opentender/feedcrawler/pkg/metrics"
	"github.com/opentender/feedcrawler/pkg/position"
)

// Supervisor resolves the starting offsets and runs the forward and backward
// crawls until shutdown. When both loops return (which outside shutdown only
// happens after a forward offset invalidation) it re-bootstraps and starts
// over.
type Supervisor struct {
	client   *feed.Client
	store    position.Store
	handler  DataHandler
	cfg      *config.Config
	recorder metrics.Recorder

	sleep sleepFunc
	now   func() time.Time
}

// NewSupervisor wires a supervisor. recorder may be nil.
func NewSupervisor(client *feed.Client, store position.Store, handler DataHandler, cfg *config.Config, recorder metrics.Recorder) *Supervisor {
	return &Supervisor{
		client:   client,
		store:    store,
		handler:  handler,
		cfg:      cfg,
		recorder: recorder,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Run crawls until ctx is cancelled or a data handler fails.
func (s *Supervisor) Run(ctx context.Context) error {
	logger.Info("start crawling",
		logger.KeyMessageID, "START_CRAWLING",
		"feed_url", s.client.FeedURL(),
	)

	first := true
	for ctx.Err() == nil {
		if !first {
			metrics.Restarted(s.recorder)
		}
		first = false

		forward, backward, operatorBackward, err := s.resolveOffsets(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		fw := s.newCrawler(feed.Forward, false)
		bw := s.newCrawler(feed.Backward, operatorBackward)
		g.Go(func() error { return fw.Run(gctx, forward) })
		g.Go(func() error { return bw.Run(gctx, backward) })

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	logger.Info("crawling stopped",
		logger.KeyMessageID, "HANDLE_STOP_SIG",
	)
	return nil
}

func (s *Supervisor) newCrawler(descending string, operatorBackward bool) *Crawler {
	return &Crawler{
		client: s.client,
		store:  s.store,
		handler: s.handler,
		params: feed.DefaultParams(
			s.cfg.API.Limit,
			s.cfg.API.OptFields,
			s.cfg.API.Mode,
		).WithDescending(descending),
		recorder:         s.recorder,
		intervals:        s.cfg.Intervals,
		cooldown:         s.cfg.Cooldown,
		dateMod:          s.cfg.DateModified,
		operatorBackward: operatorBackward,
		sleep:            s.sleep,
		now:              s.now,
	}
}

// resolveOffsets picks the starting offsets in checkpoint, operator,
// feed-head order. operatorBackward is true only for operator-supplied
// offsets, where the backward drain records its final position.
func (s *Supervisor) resolveOffsets(ctx context.Context) (forward, backward feed.Offset, operatorBackward bool, err error) {
	rec, err := getPosition(ctx, s.store, s.cfg.Intervals.DBError, s.sleep)
	if err != nil {
		return "", "", false, err
	}
	logger.Info("loaded crawler position",
		logger.KeyMessageID, "LOAD_CRAWLER_POSITION",
		"found", rec.Resumable(),
	)

	if rec.Resumable() {
		s.client.SetServerID(rec.ServerID)
		return feed.Offset(rec.ForwardOffset), feed.Offset(rec.BackwardOffset), false, nil
	}

	if s.cfg.Bootstrap.Configured() {
		logger.Info("starting from operator-supplied offsets",
			"forward_offset", s.cfg.Bootstrap.ForwardOffset,
			"backward_offset", s.cfg.Bootstrap.BackwardOffset,
		)
		return feed.Offset(s.cfg.Bootstrap.ForwardOffset),
			feed.Offset(s.cfg.Bootstrap.BackwardOffset),
			true, nil
	}

	return s.initFeed(ctx)
}

// initFeed probes the feed head (descending, no offset) for the initial
// cursors and hands the head page to the handler. It retries forever on any
// non-200 outcome and never persists a position; the crawls own the record.
func (s *Supervisor) initFeed(ctx context.Context) (forward, backward feed.Offset, _ bool, err error) {
	params := feed.DefaultParams(
		s.cfg.API.Limit,
		s.cfg.API.OptFields,
		s.cfg.API.Mode,
	).WithDescending(feed.Backward)

	for ctx.Err() == nil {
		result := s.client.Fetch(ctx, params)

		page, ok := result.(*feed.Page)
		if !ok {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("feed initialization failed, retrying",
				logger.KeyMessageID, "FEED_ERROR",
				"class", resultClass(result),
			)
			s.sleep(ctx, s.cfg.Intervals.FeedStep)
			continue
		}

		if len(page.Data) > 0 {
			if err := s.handler(ctx, s.client, page.Data); err != nil {
				return "", "", false, err
			}
		}

		// the head was requested descending: next_page walks into history,
		// prev_page toward new changes
		return page.PrevOffset, page.NextOffset, false, nil
	}
	return "", "", false, ctx.Err()
}
