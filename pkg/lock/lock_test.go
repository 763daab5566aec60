package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opentender/feedcrawler/pkg/config"
)

// fakeStore scripts per-call results and records the traffic.
type fakeStore struct {
	mu sync.Mutex

	insertErrs  []error // consumed in order; nil entry means success
	refreshErrs []error

	inserts   int
	refreshes int
	deletes   []string // instance ids passed to Delete
	indexed   bool
}

func (f *fakeStore) EnsureTTLIndex(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = true
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, processName, instanceID string, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.inserts < len(f.insertErrs) {
		err = f.insertErrs[f.inserts]
	}
	f.inserts++
	return err
}

func (f *fakeStore) Refresh(ctx context.Context, processName, instanceID string, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.refreshes < len(f.refreshErrs) {
		err = f.refreshErrs[f.refreshes]
	}
	f.refreshes++
	return err
}

func (f *fakeStore) Delete(ctx context.Context, processName, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, instanceID)
	return nil
}

func testLockConfig() config.LockConfig {
	return config.LockConfig{
		Enabled:         true,
		Collection:      "locks",
		ProcessName:     "feed-crawler",
		ExpireTime:      60 * time.Second,
		UpdateTime:      30 * time.Second,
		AcquireInterval: 10 * time.Second,
	}
}

// newTestLock wires a lock with recorded no-op sleeps and terminates.
func newTestLock(store Store) (*Lock, *[]time.Duration, *int) {
	l := New(store, testLockConfig(), 5*time.Second)
	sleeps := &[]time.Duration{}
	terms := new(int)
	l.sleep = func(ctx context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	l.terminate = func() { *terms++ }
	return l, sleeps, terms
}

func TestAcquireRetriesUntilFree(t *testing.T) {
	store := &fakeStore{insertErrs: []error{ErrDuplicateKey, ErrDuplicateKey, nil}}
	l, sleeps, _ := newTestLock(store)

	if !l.Acquire(context.Background()) {
		t.Fatal("Acquire returned false")
	}
	if store.inserts != 3 {
		t.Errorf("inserts = %d, want 3", store.inserts)
	}
	want := []time.Duration{10 * time.Second, 10 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestAcquireStopsOnCancel(t *testing.T) {
	store := &fakeStore{insertErrs: []error{ErrDuplicateKey}}
	l, _, _ := newTestLock(store)

	ctx, cancel := context.WithCancel(context.Background())
	l.sleep = func(ctx context.Context, d time.Duration) { cancel() }

	if l.Acquire(ctx) {
		t.Fatal("Acquire returned true after cancellation")
	}
}

func TestHeartbeatTerminatesOnceOnTakeover(t *testing.T) {
	store := &fakeStore{refreshErrs: []error{nil, ErrDuplicateKey}}
	l, _, terms := newTestLock(store)

	l.Heartbeat(context.Background())

	if *terms != 1 {
		t.Fatalf("terminate called %d times, want exactly 1", *terms)
	}
	if store.refreshes != 2 {
		t.Errorf("refreshes = %d, want 2", store.refreshes)
	}
}

func TestHeartbeatRetriesStoreErrors(t *testing.T) {
	dbErr := errors.New("connection reset")
	store := &fakeStore{refreshErrs: []error{dbErr, dbErr, nil}}
	l, sleeps, terms := newTestLock(store)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	l.sleep = func(ctx context.Context, d time.Duration) {
		*sleeps = append(*sleeps, d)
		calls++
		// initial wait + two retry waits + one post-success wait
		if calls == 4 {
			cancel()
		}
	}

	l.Heartbeat(ctx)

	if *terms != 0 {
		t.Fatal("store errors must not terminate the process")
	}
	want := []time.Duration{30 * time.Second, 5 * time.Second, 5 * time.Second, 30 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestRunLockedAcquiresRunsAndReleases(t *testing.T) {
	store := &fakeStore{}
	l, _, _ := newTestLock(store)
	// park the background heartbeat until RunLocked cancels it
	l.sleep = func(ctx context.Context, d time.Duration) { <-ctx.Done() }

	ran := false
	err := RunLocked(context.Background(), l, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("RunLocked failed: %v", err)
	}
	if !ran {
		t.Fatal("app did not run")
	}
	if !store.indexed {
		t.Error("TTL index was not ensured")
	}
	if store.inserts != 1 {
		t.Errorf("inserts = %d, want 1", store.inserts)
	}
	if len(store.deletes) != 1 || store.deletes[0] != l.InstanceID() {
		t.Errorf("deletes = %v, want one delete by %s", store.deletes, l.InstanceID())
	}
}

func TestRunLockedNilLockRunsApp(t *testing.T) {
	ran := false
	err := RunLocked(context.Background(), nil, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("nil lock must just run the app (ran=%v, err=%v)", ran, err)
	}
}

func TestRunLockedPropagatesAppError(t *testing.T) {
	store := &fakeStore{}
	l, _, _ := newTestLock(store)
	l.sleep = func(ctx context.Context, d time.Duration) { <-ctx.Done() }

	appErr := errors.New("boom")
	err := RunLocked(context.Background(), l, func(ctx context.Context) error {
		return appErr
	})
	if !errors.Is(err, appErr) {
		t.Fatalf("err = %v, want %v", err, appErr)
	}
	if len(store.deletes) != 1 {
		t.Error("lock must be released even when the app fails")
	}
}

func TestRunLockedReportsLockLoss(t *testing.T) {
	store := &fakeStore{refreshErrs: []error{ErrDuplicateKey}}
	l, _, _ := newTestLock(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// in production terminate sends SIGTERM and the signal handler turns it
	// into a graceful drain; model the drain as a context cancellation
	l.terminate = func() { cancel() }

	err := RunLocked(ctx, l, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrLockLost) {
		t.Fatalf("err = %v, want ErrLockLost", err)
	}
	if len(store.deletes) != 1 {
		t.Error("lock record must still be cleaned up on the way out")
	}
}

func TestRunLockedKeepsCancellationWhenLockHeld(t *testing.T) {
	store := &fakeStore{}
	l, _, _ := newTestLock(store)
	l.sleep = func(ctx context.Context, d time.Duration) { <-ctx.Done() }

	err := RunLocked(context.Background(), l, func(ctx context.Context) error {
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled when the lock was never lost", err)
	}
}

func TestInstanceIDsAreUnique(t *testing.T) {
	store := &fakeStore{}
	a := New(store, testLockConfig(), time.Second)
	b := New(store, testLockConfig(), time.Second)
	if a.InstanceID() == b.InstanceID() {
		t.Error("two lock handles share an instance id")
	}
	if a.InstanceID() == "" {
		t.Error("instance id is empty")
	}
}
