// Package position defines the durable feed-position record and the store
// interface its backends implement.
//
// One record exists per crawler process. The forward and backward loops
// write disjoint field sets of the same record, so concurrent partial saves
// are safe; only server_id is shared and it is last-write-wins.
package position

import (
	"context"
	"errors"
)

// Field names, shared by both backends: document keys in the document store,
// column names in the relational store.
const (
	ForwardOffsetKey        = "forward_offset"
	BackwardOffsetKey       = "backward_offset"
	LatestDateModifiedKey   = "latest_date_modified"
	EarliestDateModifiedKey = "earliest_date_modified"
	ServerIDKey             = "server_id"
	LockDateModifiedKey     = "lock_date_modified"
)

// ErrNotSupported is returned by backends that cannot implement an optional
// operation (the relational backend has no date-modified latch).
var ErrNotSupported = errors.New("operation not supported by this position store backend")

// Record is the persisted feed position. Empty strings mean "field absent":
// both offset fields must be present for a checkpoint to be resumable.
type Record struct {
	ForwardOffset        string
	BackwardOffset       string
	LatestDateModified   string
	EarliestDateModified string
	ServerID             string
	LockDateModified     bool
}

// Resumable reports whether the record is a usable checkpoint.
// A record with only one offset is treated as no checkpoint at all.
func (r *Record) Resumable() bool {
	return r != nil && r.ForwardOffset != "" && r.BackwardOffset != ""
}

// Patch is a partial update of the position record. Nil fields are left
// untouched by Save; set fields overwrite.
type Patch struct {
	ForwardOffset        *string
	BackwardOffset       *string
	LatestDateModified   *string
	EarliestDateModified *string
	ServerID             *string
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.ForwardOffset == nil &&
		p.BackwardOffset == nil &&
		p.LatestDateModified == nil &&
		p.EarliestDateModified == nil &&
		p.ServerID == nil
}

// SetOffset sets the direction's offset field.
func (p *Patch) SetOffset(backward bool, offset string) {
	if backward {
		p.BackwardOffset = &offset
	} else {
		p.ForwardOffset = &offset
	}
}

// SetDateModified sets the direction's date-modified field:
// earliest for the backward direction, latest for the forward one.
func (p *Patch) SetDateModified(backward bool, dateModified string) {
	if backward {
		p.EarliestDateModified = &dateModified
	} else {
		p.LatestDateModified = &dateModified
	}
}

// SetServerID sets the sticky-session field; empty values are skipped.
func (p *Patch) SetServerID(serverID string) {
	if serverID == "" {
		return
	}
	p.ServerID = &serverID
}

// Store is the durable position store.
//
// Save has upsert semantics: fields present in the patch overwrite, all
// other fields are preserved. Drop clears only the cursor/session fields
// (offsets and server_id) where the backend can express that; the
// relational backend deletes the whole row instead. Lock and Unlock toggle
// the date-modified latch and may return ErrNotSupported.
type Store interface {
	Get(ctx context.Context) (*Record, error)
	Save(ctx context.Context, patch Patch) error
	Drop(ctx context.Context) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Close(ctx context.Context) error
}
