package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is an alternate KVStore backend, grounded on
// MongoStorage (internal/storage/database.go) but re-pointed at the same
// TTL-bound cache/robots/rate-limit keyspace every other backend serves —
// it never persists a response beyond the cache's own TTL, so it does not
// reintroduce the "response persistence" Non-goal.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

type mongoDoc struct {
	ID        string            `bson:"_id"`
	Value     []byte            `bson:"value,omitempty"`
	Fields    map[string]string `bson:"fields,omitempty"`
	ExpiresAt time.Time         `bson:"expires_at"`
}

// NewMongoStore connects to uri and ensures a TTL index on expires_at.
func NewMongoStore(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		logger.Warn("mongo ttl index creation failed", "error", err)
	}

	return &MongoStore{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc mongoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Warn("mongo get failed", "key", key, "error", err)
		return nil, false, nil
	}
	if time.Now().After(doc.ExpiresAt) {
		return nil, false, nil
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": mongoDoc{ID: key, Value: value, ExpiresAt: time.Now().Add(ClampTTL(ttl))}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Warn("mongo set failed", "key", key, "error", err)
	}
	return err
}

func (s *MongoStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		s.logger.Warn("mongo delete failed", "key", key, "error", err)
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var doc mongoDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("mongo hgetall failed", "key", key, "error", err)
		return nil, err
	}
	if time.Now().After(doc.ExpiresAt) {
		return nil, nil
	}
	return doc.Fields, nil
}

func (s *MongoStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": mongoDoc{ID: key, Fields: fields, ExpiresAt: time.Now().Add(ClampTTL(ttl))}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Warn("mongo hset failed", "key", key, "error", err)
	}
	return err
}

func (s *MongoStore) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil) == nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
