// File: database/repository/booking/interface.go
package bookingRepo

import (
	"context"
	"errors"
	"time"

	"slotbook/database"
	"slotbook/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrAlreadySettled is returned by Insert when a booking for the same
// checkout session already exists. Redelivered settlement webhooks land here.
var ErrAlreadySettled = errors.New("booking: session already settled")

type BookingRepository interface {
	Insert(ctx context.Context, booking models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Booking, error)
	// FindOverlapping returns confirmed bookings on resourceID intersecting
	// [start, end).
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]models.Booking, error)
	EnsureIndexes() error
}

type mongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo constructs a MongoDB BookingRepository.
func NewMongoBookingRepo() BookingRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoBookingRepo{
		coll: db.Collection("bookings"),
	}
}
