// Package lock implements the single-writer distributed process lock.
//
// The lock is a TTL record in the document store keyed by the process name.
// At most one live crawler per process name: holders heartbeat the record's
// expiry forward, and a holder that discovers it lost the record terminates
// the whole process, because continuing would break mutual exclusion.
package lock

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/opentender/feedcrawler/internal/logger"
	"github.com/opentender/feedcrawler/pkg/config"
)

// ErrDuplicateKey is returned by a Store when the lock record is held by a
// different instance.
var ErrDuplicateKey = errors.New("lock record held by another instance")

// ErrLockLost is returned by RunLocked when the heartbeat discovered another
// instance took over the lock record. The process must not exit cleanly in
// that case: a clean exit would tell a supervisor that the work finished.
var ErrLockLost = errors.New("lock lost to another instance")

// Store persists lock records.
type Store interface {
	// EnsureTTLIndex arranges for expired records to be garbage-collected.
	EnsureTTLIndex(ctx context.Context) error

	// Insert creates the record; ErrDuplicateKey when the process name is taken.
	Insert(ctx context.Context, processName, instanceID string, expireAt time.Time) error

	// Refresh pushes expireAt forward for the (processName, instanceID) holder.
	// ErrDuplicateKey means another instance owns the record now.
	Refresh(ctx context.Context, processName, instanceID string, expireAt time.Time) error

	// Delete removes the record if instanceID still holds it.
	Delete(ctx context.Context, processName, instanceID string) error
}

// Lock is the process-wide lock handle.
type Lock struct {
	store      Store
	cfg        config.LockConfig
	retryWait  time.Duration // wait between store retries in the heartbeat
	instanceID string
	lost       atomic.Bool

	// injected for tests
	sleep     func(ctx context.Context, d time.Duration)
	terminate func()
}

// New creates a lock handle with a fresh random instance id.
// retryWait is the pause between heartbeat retries on store errors.
func New(store Store, cfg config.LockConfig, retryWait time.Duration) *Lock {
	l := &Lock{
		store:      store,
		cfg:        cfg,
		retryWait:  retryWait,
		instanceID: uuid.NewString(),
		sleep:      sleepCtx,
		terminate: func() {
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
		},
	}
	logger.Info("lock initialized", "instance_id", l.instanceID, "process_name", cfg.ProcessName)
	return l
}

// InstanceID returns this process's lock identity.
func (l *Lock) InstanceID() string {
	return l.instanceID
}

// Acquire blocks until the lock is taken (true) or ctx is cancelled (false).
// Conflicts wait the configured acquire interval between attempts.
func (l *Lock) Acquire(ctx context.Context) bool {
	for ctx.Err() == nil {
		expireAt := time.Now().Add(l.cfg.ExpireTime)
		err := l.store.Insert(ctx, l.cfg.ProcessName, l.instanceID, expireAt)
		if err == nil {
			logger.Info("lock acquired",
				logger.KeyMessageID, "LOCK_ACQUIRED",
				"process_name", l.cfg.ProcessName,
				"instance_id", l.instanceID,
			)
			return true
		}
		logger.Debug("lock busy, waiting", "process_name", l.cfg.ProcessName, "error", err)
		l.sleep(ctx, l.cfg.AcquireInterval)
	}
	return false
}

// Heartbeat refreshes the record's expiry on the update cadence until ctx is
// cancelled. Losing the record to another instance is fatal: mutual exclusion
// is gone and the only safe reaction is to vacate. The loss is recorded so
// RunLocked reports it, then the whole process is sent SIGTERM to start the
// drain.
func (l *Lock) Heartbeat(ctx context.Context) {
	l.sleep(ctx, l.cfg.UpdateTime)

	for ctx.Err() == nil {
		expireAt := time.Now().Add(l.cfg.ExpireTime)
		err := l.store.Refresh(ctx, l.cfg.ProcessName, l.instanceID, expireAt)
		if errors.Is(err, ErrDuplicateKey) {
			logger.Error("another process acquired the lock; the gap between heartbeats exceeded the lock expire time",
				logger.KeyMessageID, "LOCK_TAKEOVER",
				"process_name", l.cfg.ProcessName,
				"instance_id", l.instanceID,
			)
			l.lost.Store(true)
			l.terminate()
			return
		}
		if err != nil {
			logger.Warn("lock heartbeat failed",
				logger.KeyMessageID, "MONGODB_EXC",
				"error", err,
			)
			l.sleep(ctx, l.retryWait)
			continue
		}
		logger.Debug("lock refreshed", "process_name", l.cfg.ProcessName, "instance_id", l.instanceID)
		l.sleep(ctx, l.cfg.UpdateTime)
	}
}

// Release deletes the record if this instance still holds it.
func (l *Lock) Release(ctx context.Context) {
	if err := l.store.Delete(ctx, l.cfg.ProcessName, l.instanceID); err != nil {
		logger.Error("failed to release lock", "process_name", l.cfg.ProcessName, "error", err)
		return
	}
	logger.Info("lock released",
		logger.KeyMessageID, "LOCK_RELEASED",
		"process_name", l.cfg.ProcessName,
		"instance_id", l.instanceID,
	)
}

// RunLocked runs app while holding the lock. A nil lock (locking disabled)
// just runs the app. The heartbeat runs as a background task cancelled when
// the app returns; the lock is released on the way out even when ctx is
// already cancelled. When the heartbeat lost the lock to another instance,
// RunLocked returns ErrLockLost even if the app drained cleanly, so the
// process exits non-zero.
func RunLocked(ctx context.Context, l *Lock, app func(ctx context.Context) error) error {
	if l == nil {
		return app(ctx)
	}

	if err := l.store.EnsureTTLIndex(ctx); err != nil {
		logger.Warn("failed to create lock TTL index",
			logger.KeyMessageID, "MONGODB_INDEX_CREATION_ERROR",
			"error", err,
		)
	}

	if !l.Acquire(ctx) {
		return nil
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go l.Heartbeat(hbCtx)

	defer func() {
		stopHeartbeat()
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Release(releaseCtx)
	}()

	err := app(ctx)
	if l.lost.Load() && (err == nil || errors.Is(err, context.Canceled)) {
		return ErrLockLost
	}
	return err
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
