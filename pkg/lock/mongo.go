package lock

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opentender/feedcrawler/pkg/config"
)

// MongoStore keeps lock records in a MongoDB collection. The record's _id is
// the process name, so the unique index on _id is what enforces mutual
// exclusion; expireAt plus a TTL index garbage-collects records of dead
// holders.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// OpenMongo connects to MongoDB and binds the named lock collection.
func OpenMongo(ctx context.Context, cfg config.MongoConfig, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(collection),
	}, nil
}

// EnsureTTLIndex creates the expireAt TTL index. expireAfterSeconds is zero:
// the record's own expireAt value is the deadline.
func (s *MongoStore) EnsureTTLIndex(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create lock TTL index: %w", err)
	}
	return nil
}

// Insert implements Store.
func (s *MongoStore) Insert(ctx context.Context, processName, instanceID string, expireAt time.Time) error {
	_, err := s.coll.InsertOne(ctx, bson.M{
		"_id":      processName,
		"lockId":   instanceID,
		"expireAt": expireAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert lock record: %w", err)
	}
	return nil
}

// Refresh implements Store. The filter matches both the process name and this
// instance's id, so when another instance holds the record the upsert tries
// to insert a second document with the same _id and the unique index trips.
func (s *MongoStore) Refresh(ctx context.Context, processName, instanceID string, expireAt time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": processName, "lockId": instanceID},
		bson.M{"$set": bson.M{"expireAt": expireAt}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to refresh lock record: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, processName, instanceID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": processName, "lockId": instanceID})
	if err != nil {
		return fmt.Errorf("failed to delete lock record: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}
