package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/feed"
)

var testIntervals = config.IntervalsConfig{
	TooManyRequests: 10 * time.Second,
	ConnectionError: 5 * time.Second,
}

type reply struct {
	status int
	body   string
}

type fakeAPI struct {
	mu      sync.Mutex
	replies []reply
	hits    int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	var rep reply
	if f.hits < len(f.replies) {
		rep = f.replies[f.hits]
	} else {
		rep = reply{status: http.StatusInternalServerError, body: "script exhausted"}
	}
	f.hits++
	f.mu.Unlock()

	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func newFetcher(t *testing.T, api *fakeAPI, retries int) (*Fetcher, *[]time.Duration) {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := feed.NewClient(feed.Options{
		Host:      srv.URL,
		FeedURL:   srv.URL + "/api/2.5/tenders",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	f := NewFetcher(client, srv.URL+"/api/2.5/tenders", retries, testIntervals)
	sleeps := &[]time.Duration{}
	f.sleep = func(ctx context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return f, sleeps
}

func TestGetReturnsData(t *testing.T) {
	api := &fakeAPI{replies: []reply{{200, `{"data":{"id":"t1","title":"x"}}`}}}
	f, sleeps := newFetcher(t, api, 3)

	data, err := f.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.ID != "t1" {
		t.Errorf("data = %s, err = %v", data, err)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
}

func TestGetRetriesRateLimitForever(t *testing.T) {
	api := &fakeAPI{replies: []reply{
		{429, ""},
		{429, ""},
		{200, `{"data":{"id":"t1"}}`},
	}}
	f, sleeps := newFetcher(t, api, 1)

	data, err := f.Get(context.Background(), "t1")
	if err != nil || data == nil {
		t.Fatalf("Get = %s, %v", data, err)
	}
	want := []time.Duration{testIntervals.TooManyRequests, testIntervals.TooManyRequests}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestGetNotFoundResolvesToNoData(t *testing.T) {
	api := &fakeAPI{replies: []reply{{404, "not found"}}}
	f, sleeps := newFetcher(t, api, 3)

	data, err := f.Get(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data != nil {
		t.Errorf("data = %s, want nil for a missing document", data)
	}
	if api.count() != 1 || len(*sleeps) != 0 {
		t.Errorf("hits = %d, sleeps = %v: 404 must not be retried", api.count(), *sleeps)
	}
}

func TestGetSurrendersAfterRetryBudget(t *testing.T) {
	api := &fakeAPI{replies: []reply{
		{502, "bad"},
		{502, "bad"},
		{502, "bad"},
	}}
	f, sleeps := newFetcher(t, api, 3)

	data, err := f.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data != nil {
		t.Errorf("data = %s, want nil after the budget is spent", data)
	}
	if api.count() != 3 {
		t.Errorf("hits = %d, want exactly the retry budget", api.count())
	}
	want := []time.Duration{testIntervals.ConnectionError, testIntervals.ConnectionError}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestGetRecoversWithinRetryBudget(t *testing.T) {
	api := &fakeAPI{replies: []reply{
		{502, "bad"},
		{200, `{"data":{"id":"t1"}}`},
	}}
	f, _ := newFetcher(t, api, 3)

	data, err := f.Get(context.Background(), "t1")
	if err != nil || data == nil {
		t.Fatalf("Get = %s, %v", data, err)
	}
}

func TestGetRetriesDecodeErrors(t *testing.T) {
	api := &fakeAPI{replies: []reply{
		{200, "{broken"},
		{200, `{"data":{"id":"t1"}}`},
	}}
	f, sleeps := newFetcher(t, api, 1)

	data, err := f.Get(context.Background(), "t1")
	if err != nil || data == nil {
		t.Fatalf("Get = %s, %v", data, err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != testIntervals.ConnectionError {
		t.Errorf("sleeps = %v, want one connection-error wait", *sleeps)
	}
}

func TestProcessSkipsCallbackWithoutData(t *testing.T) {
	api := &fakeAPI{replies: []reply{{404, ""}}}
	f, _ := newFetcher(t, api, 1)

	called := false
	err := f.Process(context.Background(), "gone", func(ctx context.Context, data json.RawMessage) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if called {
		t.Error("callback must be skipped when there is no data")
	}
}

func TestProcessHandsDataToCallback(t *testing.T) {
	api := &fakeAPI{replies: []reply{{200, `{"data":{"id":"t1"}}`}}}
	f, _ := newFetcher(t, api, 1)

	var got json.RawMessage
	err := f.Process(context.Background(), "t1", func(ctx context.Context, data json.RawMessage) error {
		got = data
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got == nil {
		t.Fatal("callback did not receive the payload")
	}
}
