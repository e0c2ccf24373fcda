package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	reservationRepo "slotbook/database/repository/reservation"
	"slotbook/models"
	"slotbook/services/payment"
	"slotbook/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeHoldRepo is an in-memory ReservationRepository. WithTransaction
// emulates rollback by restoring a snapshot when fn fails. insertHook,
// when set, runs under the lock before the duplicate check and can seed
// a competing row to simulate a writer racing past the overlap pre-check.
type fakeHoldRepo struct {
	mu         sync.Mutex
	holds      map[string]models.SlotReservation
	insertHook func(r *fakeHoldRepo)
	insertErr  error
}

func newFakeHoldRepo() *fakeHoldRepo {
	return &fakeHoldRepo{holds: make(map[string]models.SlotReservation)}
}

type fakeTxnKey struct{}

// fakeTxnLog collects undo closures for writes made inside a transaction.
// Rollback replays them in reverse, leaving writes from other writers (such
// as rows seeded by insertHook) untouched, the way a real session abort would.
type fakeTxnLog struct {
	undo []func(r *fakeHoldRepo)
}

func txnLog(ctx context.Context) *fakeTxnLog {
	log, _ := ctx.Value(fakeTxnKey{}).(*fakeTxnLog)
	return log
}

func (r *fakeHoldRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	log := &fakeTxnLog{}
	txCtx := context.WithValue(ctx, fakeTxnKey{}, log)
	if err := fn(txCtx); err != nil {
		r.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i](r)
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeHoldRepo) Insert(ctx context.Context, hold models.SlotReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if r.insertHook != nil {
		hook := r.insertHook
		r.insertHook = nil
		hook(r)
	}
	for _, existing := range r.holds {
		if existing.ResourceID == hold.ResourceID && existing.StartTime.Equal(hold.StartTime) {
			return reservationRepo.ErrDuplicateHold
		}
	}
	r.holds[hold.ID] = hold
	if log := txnLog(ctx); log != nil {
		id := hold.ID
		log.undo = append(log.undo, func(r *fakeHoldRepo) { delete(r.holds, id) })
	}
	return nil
}

func (r *fakeHoldRepo) AttachSession(ctx context.Context, holdID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[holdID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	if log := txnLog(ctx); log != nil {
		prev := hold
		log.undo = append(log.undo, func(r *fakeHoldRepo) { r.holds[prev.ID] = prev })
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
	if hold, ok := r.holds[id]; ok {
		if log := txnLog(ctx); log != nil {
			prev := hold
			log.undo = append(log.undo, func(r *fakeHoldRepo) { r.holds[prev.ID] = prev })
		}
		delete(r.holds, id)
	}
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

// fakeBookingRepo is an in-memory BookingRepository.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]models.Booking)}
}

func (r *fakeBookingRepo) Insert(ctx context.Context, booking models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

// fakeGateway is an in-memory CheckoutGateway recording calls.
type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	failCreate  bool
	failExpire  bool
	onExpire    func(sessionID string)
	sessions    map[string]*models.CheckoutSession
	expired     []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*models.CheckoutSession)}
}

func (g *fakeGateway) CreateSession(ctx context.Context, in payment.CreateSessionInput) (*models.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.failCreate {
		return nil, errors.New("gateway unavailable")
	}
	sess := &models.CheckoutSession{
		ID:          fmt.Sprintf("cs_%d", g.createCalls),
		URL:         fmt.Sprintf("https://checkout.example/cs_%d", g.createCalls),
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Status:      "open",
		Metadata: map[string]string{
			payment.MetaResourceID: in.ResourceID,
			payment.MetaHolder:     in.HolderIdentity,
			payment.MetaStart:      in.StartTime.UTC().Format(time.RFC3339),
			payment.MetaEnd:        in.EndTime.UTC().Format(time.RFC3339),
			payment.MetaHoldID:     in.HoldID,
		},
	}
	g.sessions[sess.ID] = sess
	return sess, nil
}

func (g *fakeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failExpire {
		return errors.New("gateway unavailable")
	}
	g.expired = append(g.expired, sessionID)
	if g.onExpire != nil {
		g.onExpire(sessionID)
	}
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

// passChecker accepts every interval.
type passChecker struct{}

func (passChecker) Check(ctx context.Context, resourceID string, start, end time.Time) error {
	return nil
}

// failChecker rejects every interval with a fixed error.
type failChecker struct {
	err error
}

func (c failChecker) Check(ctx context.Context, resourceID string, start, end time.Time) error {
	return c.err
}
