package crawler

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/feed"
	"github.com/opentender/feedcrawler/pkg/metrics"
	"github.com/opentender/feedcrawler/pkg/position"
)

// savePosition composes and persists the patch for a non-empty page:
// the direction's offset, the derived date-modified (unless the latch is
// engaged), and the current session cookie.
func (c *Crawler) savePosition(ctx context.Context, backward bool, page *feed.Page) error {
	var patch position.Patch
	patch.SetOffset(backward, string(page.NextOffset))

	if dm := derivedDateModified(page.Data, c.dateMod.SkipStatuses); dm != "" {
		latched, err := c.latchEngaged(ctx)
		if err != nil {
			return err
		}
		if !latched {
			patch.SetDateModified(backward, dm)
		}
	}
	patch.SetServerID(c.client.ServerID())

	if err := c.saveRetry(ctx, patch); err != nil {
		return err
	}
	metrics.PositionSaved(c.recorder, c.direction())
	return nil
}

// derivedDateModified scans items tail-first and returns the first non-empty
// dateModified whose status is not in the skip set. Skip-status items mutate
// their modified time while staying in the same workflow phase, which makes
// them unreliable position markers; items without a dateModified (narrow
// opt_fields selections) carry no position information at all.
func derivedDateModified(items []feed.Item, skipStatuses []string) string {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].DateModified == "" {
			continue
		}
		if !slices.Contains(skipStatuses, items[i].Status) {
			return items[i].DateModified
		}
	}
	return ""
}

// latchEngaged reports whether the persisted record carries the
// date-modified latch. Saves made while the latch is engaged must not touch
// the date-modified fields: the stop barrier still needs the pre-drop value.
func (c *Crawler) latchEngaged(ctx context.Context) (bool, error) {
	if !c.dateMod.LockEnabled {
		return false, nil
	}
	rec, err := c.getRetry(ctx)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.LockDateModified, nil
}

// dateModifiedReached evaluates the backward stop barrier: the page's
// derived date-modified fell strictly below the persisted
// latest_date_modified minus the margin. The latch is cleared on the way out.
func (c *Crawler) dateModifiedReached(ctx context.Context, page *feed.Page) (bool, error) {
	if !c.dateMod.LockEnabled {
		return false, nil
	}

	rec, err := c.getRetry(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.LatestDateModified == "" {
		return false, nil
	}

	derived := derivedDateModified(page.Data, c.dateMod.SkipStatuses)
	if derived == "" {
		return false, nil
	}

	derivedAt, errDerived := time.Parse(time.RFC3339, derived)
	latestAt, errLatest := time.Parse(time.RFC3339, rec.LatestDateModified)
	if errDerived != nil || errLatest != nil {
		logger.Error("cannot parse date modified for the stop barrier",
			"derived", derived,
			"latest", rec.LatestDateModified,
		)
		return false, nil
	}

	if !derivedAt.Before(latestAt.Add(-c.dateMod.Margin)) {
		return false, nil
	}

	logger.Info("backward crawl reached previously seen history",
		logger.KeyMessageID, "CRAWLER_DATE_MODIFIED_REACHED",
		"derived", derived,
		"latest", rec.LatestDateModified,
	)
	return true, c.clearLatch(ctx)
}

// dropPosition removes the persisted cursors after offset invalidation and,
// when the date-modified barrier is enabled, engages the latch so the
// re-bootstrapped backward crawl stops at previously seen history.
func (c *Crawler) dropPosition(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.store.Drop(ctx)
		if err == nil {
			break
		}
		logger.Warn("position drop failed, retrying",
			logger.KeyMessageID, "MONGODB_EXC",
			"error", err,
		)
		c.sleep(ctx, c.intervals.DBError)
	}

	logger.Info("dropped feed position",
		logger.KeyMessageID, "CRAWLER_DROP_FEED_POSITION",
		"direction", c.direction(),
	)
	metrics.PositionDropped(c.recorder)

	if !c.dateMod.LockEnabled {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.store.Lock(ctx)
		if err == nil {
			logger.Info("engaged date-modified latch",
				logger.KeyMessageID, "CRAWLER_LOCK_DATE_MODIFIED",
			)
			return nil
		}
		if errors.Is(err, position.ErrNotSupported) {
			return err
		}
		logger.Warn("latch engage failed, retrying",
			logger.KeyMessageID, "MONGODB_EXC",
			"error", err,
		)
		c.sleep(ctx, c.intervals.DBError)
	}
}

func (c *Crawler) clearLatch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.store.Unlock(ctx)
		if err == nil {
			logger.Info("cleared date-modified latch",
				logger.KeyMessageID, "CRAWLER_UNLOCK_DATE_MODIFIED",
			)
			return nil
		}
		if errors.Is(err, position.ErrNotSupported) {
			return err
		}
		logger.Warn("latch clear failed, retrying",
			logger.KeyMessageID, "MONGODB_EXC",
			"error", err,
		)
		c.sleep(ctx, c.intervals.DBError)
	}
}

// saveRetry writes the patch, retrying forever on store errors. A slow or
// flapping store blocks the crawl instead of dropping a checkpoint.
func (c *Crawler) saveRetry(ctx context.Context, patch position.Patch) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.store.Save(ctx, patch)
		if err == nil {
			return nil
		}
		logger.Warn("position save failed, retrying",
			logger.KeyMessageID, "MONGODB_EXC",
			"error", err,
		)
		c.sleep(ctx, c.intervals.DBError)
	}
}

func (c *Crawler) getRetry(ctx context.Context) (*position.Record, error) {
	return getPosition(ctx, c.store, c.intervals.DBError, c.sleep)
}

// getPosition loads the record, retrying forever on store errors.
func getPosition(ctx context.Context, store position.Store, wait time.Duration, sleep sleepFunc) (*position.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := store.Get(ctx)
		if err == nil {
			return rec, nil
		}
		logger.Warn("position load failed, retrying",
			logger.KeyMessageID, "MONGODB_EXC",
			"error", err,
		)
		sleep(ctx, wait)
	}
}
