package reservationRepo

import (
	"context"
	"fmt"
	"time"

	"slotbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoReservationRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	client := r.coll.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		return err
	}
	return nil
}

func (r *mongoReservationRepo) Insert(ctx context.Context, hold models.SlotReservation) error {
	if _, err := r.coll.InsertOne(ctx, hold); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateHold
		}
		return fmt.Errorf("insert reservation failed: %w", err)
	}
	return nil
}

func (r *mongoReservationRepo) AttachSession(ctx context.Context, holdID, sessionID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": holdID},
		bson.M{"$set": bson.M{"session_id": sessionID}},
	)
	if err != nil {
		return fmt.Errorf("attach session failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *mongoReservationRepo) FindByID(ctx context.Context, id string) (*models.SlotReservation, error) {
	var hold models.SlotReservation
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *mongoReservationRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.SlotReservation, error) {
	var hold models.SlotReservation
	if err := r.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *mongoReservationRepo) FindByResourceStart(ctx context.Context, resourceID string, start time.Time) (*models.SlotReservation, error) {
	var hold models.SlotReservation
	filter := bson.M{"resource_id": resourceID, "start_time": start}
	if err := r.coll.FindOne(ctx, filter).Decode(&hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *mongoReservationRepo) FindOverlapping(ctx context.Context, resourceID string, start, end, now time.Time) ([]models.SlotReservation, error) {
	filter := bson.M{
		"resource_id": resourceID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
		"expires_at":  bson.M{"$gt": now},
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservations failed: %w", err)
	}
	defer cur.Close(ctx)

	var holds []models.SlotReservation
	if err := cur.All(ctx, &holds); err != nil {
		return nil, fmt.Errorf("decode overlapping reservations failed: %w", err)
	}
	return holds, nil
}

func (r *mongoReservationRepo) FindExpired(ctx context.Context, now time.Time) ([]models.SlotReservation, error) {
	cur, err := r.coll.Find(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return nil, fmt.Errorf("find expired reservations failed: %w", err)
	}
	defer cur.Close(ctx)

	var holds []models.SlotReservation
	if err := cur.All(ctx, &holds); err != nil {
		return nil, fmt.Errorf("decode expired reservations failed: %w", err)
	}
	return holds, nil
}

func (r *mongoReservationRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("delete reservation failed: %w", err)
	}
	return nil
}

func (r *mongoReservationRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("delete reservation by session failed: %w", err)
	}
	return nil
}

func (r *mongoReservationRepo) DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	// The expiry predicate is re-evaluated inside the delete so a hold that
	// was just confirmed (and removed) by a webhook, or whose row was
	// replaced, is never deleted from under a fresh booking.
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"id":         id,
		"expires_at": bson.M{"$lt": now},
	})
	if err != nil {
		return false, fmt.Errorf("conditional delete failed: %w", err)
	}
	return res.DeletedCount > 0, nil
}
