package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	reservationRepo "slotbook/database/repository/reservation"
	webhookeventRepo "slotbook/database/repository/webhookevent"
	"slotbook/models"
	"slotbook/services/payment"
	"slotbook/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

type fakeHoldRepo struct {
	mu    sync.Mutex
	holds map[string]models.SlotReservation
}

func newFakeHoldRepo() *fakeHoldRepo {
	return &fakeHoldRepo{holds: make(map[string]models.SlotReservation)}
}

func (r *fakeHoldRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	before := make(map[string]models.SlotReservation, len(r.holds))
	for k, v := range r.holds {
		before[k] = v
	}
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.holds = before
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeHoldRepo) Insert(ctx context.Context, hold models.SlotReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.holds {
		if existing.ResourceID == hold.ResourceID && existing.StartTime.Equal(hold.StartTime) {
			return reservationRepo.ErrDuplicateHold
		}
	}
	r.holds[hold.ID] = hold
	return nil
}

func (r *fakeHoldRepo) AttachSession(ctx context.Context, holdID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[holdID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	hold.SessionID = sessionID
	r.holds[holdID] = hold
	return nil
}

func (r *fakeHoldRepo) FindByID(ctx context.Context, id string) (*models.SlotReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &hold, nil
}

func (r *fakeHoldRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.SlotReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hold := range r.holds {
		if hold.SessionID == sessionID {
			h := hold
			return &h, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeHoldRepo) FindByResourceStart(ctx context.Context, resourceID string, start time.Time) (*models.SlotReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hold := range r.holds {
		if hold.ResourceID == resourceID && hold.StartTime.Equal(start) {
			h := hold
			return &h, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeHoldRepo) FindOverlapping(ctx context.Context, resourceID string, start, end, now time.Time) ([]models.SlotReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SlotReservation
	for _, hold := range r.holds {
		if hold.ResourceID != resourceID || hold.Expired(now) {
			continue
		}
		if utils.Overlaps(hold.StartTime, hold.EndTime, start, end) {
			out = append(out, hold)
		}
	}
	return out, nil
}

func (r *fakeHoldRepo) FindExpired(ctx context.Context, now time.Time) ([]models.SlotReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SlotReservation
	for _, hold := range r.holds {
		if hold.Expired(now) {
			out = append(out, hold)
		}
	}
	return out, nil
}

func (r *fakeHoldRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.holds, id)
	return nil
}

func (r *fakeHoldRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, hold := range r.holds {
		if hold.SessionID == sessionID {
			delete(r.holds, id)
		}
	}
	return nil
}

func (r *fakeHoldRepo) DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[id]
	if !ok || !hold.Expired(now) {
		return false, nil
	}
	delete(r.holds, id)
	return true, nil
}

func (r *fakeHoldRepo) EnsureIndexes() error { return nil }

type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]models.Booking
	insertErr error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]models.Booking)}
}

func (r *fakeBookingRepo) Insert(ctx context.Context, booking models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.bookings {
		if existing.SessionID == booking.SessionID {
			return bookingRepo.ErrAlreadySettled
		}
	}
	r.bookings[booking.ID] = booking
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &booking, nil
}

func (r *fakeBookingRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, booking := range r.bookings {
		if booking.SessionID == sessionID {
			b := booking
			return &b, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeBookingRepo) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, booking := range r.bookings {
		if booking.ResourceID != resourceID {
			continue
		}
		if utils.Overlaps(booking.StartTime, booking.EndTime, start, end) {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) EnsureIndexes() error { return nil }

type fakeEventRepo struct {
	mu        sync.Mutex
	processed map[string]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{processed: make(map[string]string)}
}

func (r *fakeEventRepo) MarkProcessed(ctx context.Context, eventID, kind string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processed[eventID]; ok {
		return webhookeventRepo.ErrAlreadyProcessed
	}
	r.processed[eventID] = kind
	return nil
}

func (r *fakeEventRepo) Unmark(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processed, eventID)
	return nil
}

func (r *fakeEventRepo) EnsureIndexes() error { return nil }

func (r *fakeEventRepo) marked(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[eventID]
	return ok
}

type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*models.CheckoutSession
	expired  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*models.CheckoutSession)}
}

func (g *fakeGateway) CreateSession(ctx context.Context, in payment.CreateSessionInput) (*models.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, sessionID)
	return nil
}

func (g *fakeGateway) GetSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

// fakeDispatcher records every intent handed to it. Downstream dedup by
// transaction id is the queue's concern, so no filtering happens here.
type fakeDispatcher struct {
	mu      sync.Mutex
	intents []models.NotificationIntent
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, intent models.NotificationIntent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intent)
	return nil
}

func (d *fakeDispatcher) transactionIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.intents))
	for _, intent := range d.intents {
		out = append(out, intent.TransactionID)
	}
	return out
}
