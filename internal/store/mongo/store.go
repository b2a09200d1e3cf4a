// Package mongo implements the assessment store against MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"finrisk/internal/pipeline"
	"finrisk/internal/store"
)

const collectionName = "assessments"

// Store is the MongoDB-backed AssessmentStore. Documents are keyed by
// assessment ID; a secondary index covers transaction lookups.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB and verifies connectivity.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Store{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the transaction lookup index. Called once at process
// start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "transaction_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create assessment index: %w", err)
	}
	return nil
}

type document struct {
	ID         string              `bson:"_id"`
	Assessment pipeline.Assessment `bson:"assessment"`
	UpdatedAt  time.Time           `bson:"updated_at"`

	// Promoted for indexed lookups.
	TransactionID string `bson:"transaction_id"`
}

// Save upserts the assessment by ID.
func (s *Store) Save(ctx context.Context, a pipeline.Assessment) error {
	doc := document{
		ID:            a.ID,
		Assessment:    a,
		UpdatedAt:     time.Now().UTC(),
		TransactionID: a.TransactionID,
	}
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: a.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save assessment %q: %w", a.ID, err)
	}
	return nil
}

// Get returns the assessment with the given ID.
func (s *Store) Get(ctx context.Context, id string) (pipeline.Assessment, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByTransaction returns the most recently updated assessment for a
// transaction.
func (s *Store) GetByTransaction(ctx context.Context, transactionID string) (pipeline.Assessment, error) {
	return s.findOne(ctx,
		bson.D{{Key: "transaction_id", Value: transactionID}},
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
}

func (s *Store) findOne(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOneOptions]) (pipeline.Assessment, error) {
	var doc document
	err := s.collection.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return pipeline.Assessment{}, store.ErrNotFound
	}
	if err != nil {
		return pipeline.Assessment{}, fmt.Errorf("find assessment: %w", err)
	}
	return doc.Assessment, nil
}
