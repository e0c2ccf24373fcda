// File: database/repository/reservation/interface.go
package reservationRepo

import (
	"context"
	"errors"
	"time"

	"slotbook/database"
	"slotbook/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateHold is returned by Insert when the unique index on
// (resource_id, start_time) rejects the write. Callers treat it as
// losing the race for the slot.
var ErrDuplicateHold = errors.New("reservation: duplicate hold")

type ReservationRepository interface {
	// WithTransaction runs fn inside a Mongo session transaction. Repo
	// methods called with the ctx passed to fn participate in the
	// transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	Insert(ctx context.Context, hold models.SlotReservation) error
	AttachSession(ctx context.Context, holdID, sessionID string) error
	FindByID(ctx context.Context, id string) (*models.SlotReservation, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.SlotReservation, error)
	// FindByResourceStart resolves which writer won after a duplicate-key
	// rejection.
	FindByResourceStart(ctx context.Context, resourceID string, start time.Time) (*models.SlotReservation, error)
	// FindOverlapping returns non-expired holds on resourceID whose
	// [start, end) interval intersects the given one.
	FindOverlapping(ctx context.Context, resourceID string, start, end, now time.Time) ([]models.SlotReservation, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.SlotReservation, error)
	Delete(ctx context.Context, id string) error
	DeleteBySessionID(ctx context.Context, sessionID string) error
	// DeleteIfExpired deletes the hold only if it is still expired at
	// delete time. Returns true when a row was removed.
	DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
	EnsureIndexes() error
}

type mongoReservationRepo struct {
	coll *mongo.Collection
}

// NewMongoReservationRepo constructs a MongoDB ReservationRepository.
func NewMongoReservationRepo() ReservationRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoReservationRepo{
		coll: db.Collection("reservations"),
	}
}
