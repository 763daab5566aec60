// Package memory implements an in-memory position store used by tests.
// It follows the document backend's semantics: Drop clears only the cursor
// and session fields, and the date-modified latch is supported.
package memory

import (
	"context"
	"sync"

	"github.com/opentender/feedcrawler/pkg/position"
)

// Store is an in-process position store. It records every call so tests can
// assert on the exact write traffic, and optional error hooks let tests
// simulate a flaky backend.
type Store struct {
	mu     sync.Mutex
	record *position.Record

	// call history
	Saves     []position.Patch
	DropCalls int
	GetCalls  int

	// error hooks: when set, the next N calls fail with the given error
	FailSaves int
	FailGets  int
	Err       error
}

var _ position.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Seed installs a pre-existing record, as if a previous run had saved it.
func (s *Store) Seed(rec position.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.record = &cp
}

// Snapshot returns a copy of the current record, or nil.
func (s *Store) Snapshot() *position.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil
	}
	cp := *s.record
	return &cp
}

// Get implements position.Store.
func (s *Store) Get(ctx context.Context) (*position.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.FailGets > 0 {
		s.FailGets--
		return nil, s.Err
	}
	if s.record == nil {
		return nil, nil
	}
	cp := *s.record
	return &cp, nil
}

// Save implements position.Store.
func (s *Store) Save(ctx context.Context, patch position.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves > 0 {
		s.FailSaves--
		return s.Err
	}
	s.Saves = append(s.Saves, patch)
	if s.record == nil {
		s.record = &position.Record{}
	}
	if patch.ForwardOffset != nil {
		s.record.ForwardOffset = *patch.ForwardOffset
	}
	if patch.BackwardOffset != nil {
		s.record.BackwardOffset = *patch.BackwardOffset
	}
	if patch.LatestDateModified != nil {
		s.record.LatestDateModified = *patch.LatestDateModified
	}
	if patch.EarliestDateModified != nil {
		s.record.EarliestDateModified = *patch.EarliestDateModified
	}
	if patch.ServerID != nil {
		s.record.ServerID = *patch.ServerID
	}
	return nil
}

// Drop implements position.Store: cursor and session fields only.
func (s *Store) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DropCalls++
	if s.record != nil {
		s.record.ForwardOffset = ""
		s.record.BackwardOffset = ""
		s.record.ServerID = ""
	}
	return nil
}

// Lock implements position.Store.
func (s *Store) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		s.record = &position.Record{}
	}
	s.record.LockDateModified = true
	return nil
}

// Unlock implements position.Store.
func (s *Store) Unlock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		s.record = &position.Record{}
	}
	s.record.LockDateModified = false
	return nil
}

// Close implements position.Store.
func (s *Store) Close(ctx context.Context) error {
	return nil
}
