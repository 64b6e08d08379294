// Package history records every successful chain operation in MongoDB. The
// service runs fine without it; a nil *Store disables recording.
package history

import (
	"context"
	"time"

	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	databaseName   = "cardano-forge"
	collectionName = "tx-history"
)

type Entry struct {
	Operation  string         `bson:"operation" json:"operation"`
	Course     forge.CourseID `bson:"course" json:"course"`
	PolicyID   forge.PolicyID `bson:"policy_id" json:"policy_id"`
	AssetNames []string       `bson:"asset_names" json:"asset_names"`
	TxHash     string         `bson:"tx_hash" json:"tx_hash"`
	Timestamp  time.Time      `bson:"timestamp" json:"timestamp"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials MongoDB and pings it once. The caller owns Close.
func Connect(ctx context.Context, uri string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Record.Info("HISTORY", "CONNECTED", true)
	return &Store{
		client:     client,
		collection: client.Database(databaseName).Collection(collectionName),
	}, nil
}

func (s *Store) Close(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.client.Disconnect(ctx); err != nil {
		logger.Record.Error("HISTORY", "ERROR", err)
	}
}

// Record inserts one entry. Failures are logged, not surfaced; history is
// best-effort and never fails a request that already hit the chain.
func (s *Store) Record(ctx context.Context, entry Entry) {
	if s == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		logger.Record.Error("HISTORY", "ERROR", err, "TX", entry.TxHash)
	}
}

// List returns the recorded operations for a course, most recent first.
func (s *Store) List(ctx context.Context, course forge.CourseID) ([]Entry, error) {
	filter := bson.D{{Key: "course", Value: course}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
