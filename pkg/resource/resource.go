// Package resource fetches single documents by id over the crawler's sticky
// feed session, with the same fixed-interval retry policy as the feed loops.
package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/feed"
)

// Fetcher retrieves one document per call from {baseURL}/{id}.
type Fetcher struct {
	client    *feed.Client
	baseURL   string
	retries   int
	intervals config.IntervalsConfig

	sleep func(ctx context.Context, d time.Duration)
}

// NewFetcher builds a fetcher. baseURL is the resource endpoint without a
// trailing slash, e.g. "https://host/api/2.5/tenders". retries bounds the
// attempts on unexpected statuses; transport errors and 429 retry forever.
func NewFetcher(client *feed.Client, baseURL string, retries int, intervals config.IntervalsConfig) *Fetcher {
	if retries < 1 {
		retries = 1
	}
	return &Fetcher{
		client:    client,
		baseURL:   baseURL,
		retries:   retries,
		intervals: intervals,
		sleep:     sleepCtx,
	}
}

// Get returns the document's "data" payload. A missing document (404) and an
// exhausted retry budget both resolve to nil data without an error; the
// failure is logged, and the caller moves on. The error is non-nil only when
// ctx ends.
func (f *Fetcher) Get(ctx context.Context, id string) (json.RawMessage, error) {
	url := f.baseURL + "/" + id
	retries := f.retries

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, body, err := f.client.GetRaw(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("resource request failed",
				logger.KeyMessageID, "HTTP_EXCEPTION",
				"url", url,
				"error", err,
			)
			f.sleep(ctx, f.intervals.ConnectionError)
			continue
		}

		switch status {
		case http.StatusOK:
			var envelope struct {
				Data json.RawMessage `json:"data"`
			}
			if err := f.client.Decode(body, &envelope); err != nil {
				logger.Warn("cannot decode resource response",
					logger.KeyMessageID, "HTTP_EXCEPTION",
					"url", url,
					"error", err,
				)
				f.sleep(ctx, f.intervals.ConnectionError)
				continue
			}
			return envelope.Data, nil

		case http.StatusTooManyRequests:
			logger.Warn("rate limited while getting resource",
				logger.KeyMessageID, "TOO_MANY_REQUESTS",
				"url", url,
			)
			f.sleep(ctx, f.intervals.TooManyRequests)

		case http.StatusNotFound:
			logger.Warn("resource not found",
				logger.KeyMessageID, "RESOURCE_NOT_FOUND",
				"url", url,
			)
			return nil, nil

		default:
			if retries > 1 {
				retries--
				logger.Warn("unexpected status while getting resource",
					logger.KeyMessageID, "REQUEST_UNEXPECTED_ERROR",
					"url", url,
					"status", status,
					"body", string(body),
				)
				f.sleep(ctx, f.intervals.ConnectionError)
				continue
			}
			logger.Error("giving up on resource",
				logger.KeyMessageID, "REQUEST_UNEXPECTED_ERROR",
				"url", url,
				"status", status,
				"body", string(body),
			)
			return nil, nil
		}
	}
}

// Process fetches the document and hands its payload to fn. fn is skipped
// when no data could be retrieved.
func (f *Fetcher) Process(ctx context.Context, id string, fn func(ctx context.Context, data json.RawMessage) error) error {
	data, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	return fn(ctx, data)
}

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
