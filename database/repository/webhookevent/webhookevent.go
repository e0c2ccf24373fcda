// File: database/repository/webhookevent/webhookevent.go
package webhookeventRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlreadyProcessed is returned when the event id was recorded before.
var ErrAlreadyProcessed = errors.New("webhookevent: already processed")

// processedEvent records a processor event id we have acted on, so
// redelivered webhooks are absorbed before any state mutation.
type processedEvent struct {
	EventID     string    `bson:"event_id"`
	Kind        string    `bson:"kind"`
	ProcessedAt time.Time `bson:"processed_at"`
}

type EventRepository interface {
	// MarkProcessed records the event id. Returns ErrAlreadyProcessed when a
	// previous delivery already claimed it.
	MarkProcessed(ctx context.Context, eventID, kind string, now time.Time) error
	// Unmark releases the id so a failed handler can be retried by the
	// processor's redelivery.
	Unmark(ctx context.Context, eventID string) error
	EnsureIndexes() error
}

type mongoEventRepo struct {
	coll *mongo.Collection
}

// NewMongoEventRepo constructs a MongoDB EventRepository.
func NewMongoEventRepo() EventRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoEventRepo{
		coll: db.Collection("processed_events"),
	}
}

func (r *mongoEventRepo) MarkProcessed(ctx context.Context, eventID, kind string, now time.Time) error {
	doc := processedEvent{
		EventID:     eventID,
		Kind:        kind,
		ProcessedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("mark event processed failed: %w", err)
	}
	return nil
}

func (r *mongoEventRepo) Unmark(ctx context.Context, eventID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"event_id": eventID}); err != nil {
		return fmt.Errorf("unmark event failed: %w", err)
	}
	return nil
}

// EnsureIndexes creates the necessary indexes on the processed_events collection.
func (r *mongoEventRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_event_id"),
		},
		// Old records age out; processors do not redeliver forever.
		{
			Keys:    bson.D{{Key: "processed_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 3600).SetName("processed_ttl"),
		},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create processed_events indexes: %w", err)
	}
	return nil
}
