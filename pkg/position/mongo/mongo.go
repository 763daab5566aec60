// Package mongo implements the document-store position backend.
//
// The record lives in a single document keyed by the configured state id.
// Save maps to an upsert $set of the patched fields, Drop $unsets only the
// cursor/session fields so the date-modified bookkeeping survives, and the
// date-modified latch is a plain boolean field.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opentender/feedcrawler/pkg/config"
	"github.com/opentender/feedcrawler/pkg/position"
)

// Store is the MongoDB-backed position store.
type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	stateID string
}

var _ position.Store = (*Store)(nil)

// Open connects to MongoDB and binds the state collection.
func Open(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.StateCollection),
		stateID: cfg.StateID,
	}, nil
}

// recordDoc is the persisted document layout.
type recordDoc struct {
	ForwardOffset        string `bson:"forward_offset,omitempty"`
	BackwardOffset       string `bson:"backward_offset,omitempty"`
	LatestDateModified   string `bson:"latest_date_modified,omitempty"`
	EarliestDateModified string `bson:"earliest_date_modified,omitempty"`
	ServerID             string `bson:"server_id,omitempty"`
	LockDateModified     bool   `bson:"lock_date_modified,omitempty"`
}

// Get returns the position record, or nil when none exists yet.
func (s *Store) Get(ctx context.Context) (*position.Record, error) {
	var doc recordDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.stateID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feed position: %w", err)
	}

	return &position.Record{
		ForwardOffset:        doc.ForwardOffset,
		BackwardOffset:       doc.BackwardOffset,
		LatestDateModified:   doc.LatestDateModified,
		EarliestDateModified: doc.EarliestDateModified,
		ServerID:             doc.ServerID,
		LockDateModified:     doc.LockDateModified,
	}, nil
}

// Save upserts the patched fields, leaving all others untouched.
func (s *Store) Save(ctx context.Context, patch position.Patch) error {
	set := bson.M{}
	if patch.ForwardOffset != nil {
		set[position.ForwardOffsetKey] = *patch.ForwardOffset
	}
	if patch.BackwardOffset != nil {
		set[position.BackwardOffsetKey] = *patch.BackwardOffset
	}
	if patch.LatestDateModified != nil {
		set[position.LatestDateModifiedKey] = *patch.LatestDateModified
	}
	if patch.EarliestDateModified != nil {
		set[position.EarliestDateModifiedKey] = *patch.EarliestDateModified
	}
	if patch.ServerID != nil {
		set[position.ServerIDKey] = *patch.ServerID
	}
	if len(set) == 0 {
		return nil
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": s.stateID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save feed position: %w", err)
	}
	return nil
}

// Drop clears the cursor and session fields. The date-modified fields and
// the latch stay, so a re-bootstrap can still honor the stop barrier.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": s.stateID},
		bson.M{"$unset": bson.M{
			position.ForwardOffsetKey:  "",
			position.BackwardOffsetKey: "",
			position.ServerIDKey:       "",
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to drop feed position: %w", err)
	}
	return nil
}

// Lock engages the date-modified latch.
func (s *Store) Lock(ctx context.Context) error {
	return s.setLatch(ctx, true)
}

// Unlock clears the date-modified latch.
func (s *Store) Unlock(ctx context.Context) error {
	return s.setLatch(ctx, false)
}

func (s *Store) setLatch(ctx context.Context, locked bool) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": s.stateID},
		bson.M{"$set": bson.M{position.LockDateModifiedKey: locked}},
	)
	if err != nil {
		return fmt.Errorf("failed to set date-modified latch: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}
