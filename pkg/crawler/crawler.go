// Package crawler implements the bidirectional changes-feed crawler: the
// per-direction polling loop, the position writer, and the supervisor that
// bootstraps offsets and keeps both loops running.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/feed"
	"github.com/opentender/feedcrawler/pkg/metrics"
	"github.com/opentender/feedcrawler/pkg/position"
)

// DataHandler is invoked once per non-empty page and awaited before the
// position is persisted. The client is passed through so handlers can fetch
// full documents over the same sticky session.
type DataHandler func(ctx context.Context, client *feed.Client, items []feed.Item) error

type sleepFunc func(ctx context.Context, d time.Duration)

// Crawler is one direction of the feed crawl.
type Crawler struct {
	client   *feed.Client
	store    position.Store
	handler  DataHandler
	params   feed.Params
	recorder metrics.Recorder

	intervals config.IntervalsConfig
	cooldown  config.CooldownConfig
	dateMod   config.DateModifiedConfig

	// operatorBackward marks a backward crawl started from an
	// operator-supplied offset; its final position is recorded on drain
	operatorBackward bool

	sleep sleepFunc
	now   func() time.Time
}

func (c *Crawler) direction() string {
	if c.params.IsBackward() {
		return "backward"
	}
	return "forward"
}

// Run crawls from offset until the loop terminates: ctx cancellation, an
// invalid offset, the backward stop predicate, or a data-handler error.
func (c *Crawler) Run(ctx context.Context, offset feed.Offset) error {
	direction := c.direction()
	params := c.params.WithOffset(offset)

	logger.Info("crawler started",
		logger.KeyMessageID, "CRAWLER_STARTED",
		"direction", direction,
		"offset", string(offset),
	)
	defer logger.Info("crawler stopped",
		logger.KeyMessageID, "CRAWLER_STOPPED",
		"direction", direction,
	)

	for ctx.Err() == nil {
		if !params.IsBackward() && c.cooldown.ForwardChanges > 0 {
			age, ok := feed.OffsetAge(params.Offset, c.now())
			if !ok {
				logger.Error("cannot derive offset age for cooldown",
					logger.KeyMessageID, "INVALID_OFFSET",
					"offset", string(params.Offset),
				)
			} else if age < c.cooldown.ForwardChanges {
				c.sleep(ctx, c.cooldown.SleepForwardChanges)
				continue
			}
		}

		result := c.client.Fetch(ctx, params)
		metrics.FeedRequest(c.recorder, direction, resultClass(result))

		switch r := result.(type) {
		case *feed.TransientError:
			if ctx.Err() != nil {
				// the cancelled request surfaces as a transport error
				continue
			}
			logger.Warn("feed request failed",
				logger.KeyMessageID, "HTTP_EXCEPTION",
				"direction", direction,
				"error", r.Err,
			)
			c.sleep(ctx, c.intervals.ConnectionError)

		case *feed.TooManyRequests:
			logger.Warn("feed rate limited",
				logger.KeyMessageID, "TOO_MANY_REQUESTS",
				"direction", direction,
			)
			c.sleep(ctx, c.intervals.TooManyRequests)
			c.sleep(ctx, c.intervals.FeedStep)

		case *feed.PreconditionFailed:
			logger.Warn("feed precondition failed, retrying as-is",
				logger.KeyMessageID, "PRECONDITION_FAILED",
				"direction", direction,
			)
			c.sleep(ctx, c.intervals.FeedStep)

		case *feed.OffsetInvalid:
			logger.Warn("server no longer accepts the offset",
				logger.KeyMessageID, "OFFSET_INVALID",
				"direction", direction,
				"offset", string(params.Offset),
			)
			if err := c.dropPosition(ctx); err != nil {
				return err
			}
			return nil

		case *feed.UnexpectedStatus:
			logger.Error("unexpected feed response",
				logger.KeyMessageID, "FEED_UNEXPECTED_ERROR",
				"direction", direction,
				"status", r.Code,
				"body", r.Body,
			)
			c.sleep(ctx, c.intervals.FeedStep)

		case *feed.Page:
			stop, err := c.handlePage(ctx, &params, r)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
	}
	return nil
}

// handlePage processes one successful page: hand data to the handler,
// persist the position, evaluate the stop predicate, advance the offset.
func (c *Crawler) handlePage(ctx context.Context, params *feed.Params, page *feed.Page) (stop bool, err error) {
	backward := params.IsBackward()
	direction := c.direction()

	if len(page.Data) > 0 {
		logger.Info("handling feed page",
			logger.KeyMessageID, "FEED_REQUEST",
			"direction", direction,
			"items", len(page.Data),
			"next_offset", string(page.NextOffset),
		)
		if err := c.handler(ctx, c.client, page.Data); err != nil {
			return false, fmt.Errorf("data handler failed: %w", err)
		}
		metrics.PageHandled(c.recorder, direction, len(page.Data))

		if err := c.savePosition(ctx, backward, page); err != nil {
			return false, err
		}
	}

	if backward {
		if len(page.Data) == 0 {
			if c.operatorBackward {
				// record where the operator-requested drain ended so a
				// later run can pick it up
				var patch position.Patch
				patch.SetOffset(true, string(page.NextOffset))
				patch.SetServerID(c.client.ServerID())
				if err := c.saveRetry(ctx, patch); err != nil {
					return false, err
				}
			}
			logger.Info("backward crawl drained the history",
				logger.KeyMessageID, "BACK_CRAWLER_STOP",
			)
			return true, nil
		}

		reached, err := c.dateModifiedReached(ctx, page)
		if err != nil {
			return false, err
		}
		if reached {
			return true, nil
		}
	}

	*params = params.WithOffset(page.NextOffset)

	if len(page.Data) < params.Limit {
		c.sleep(ctx, c.intervals.NoItems)
	}
	c.sleep(ctx, c.intervals.FeedStep)
	return false, nil
}

// resultClass labels a feed result for metrics.
func resultClass(r feed.Result) string {
	switch r.(type) {
	case *feed.Page:
		return "page"
	case *feed.TransientError:
		return "transient_error"
	case *feed.TooManyRequests:
		return "too_many_requests"
	case *feed.PreconditionFailed:
		return "precondition_failed"
	case *feed.OffsetInvalid:
		return "offset_invalid"
	default:
		return "unexpected_status"
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
