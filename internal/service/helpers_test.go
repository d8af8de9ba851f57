package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sent struct {
	userID uuid.UUID
	kind   model.NotificationKind
	jobID  uuid.UUID
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Notify(_ context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{userID, kind, jobID})
	return nil
}

func (r *recorder) count(userID uuid.UUID, kind model.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.userID == userID && s.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type testEnv struct {
	store     *memory.Store
	clock     *clock
	notes     *recorder
	events    *Dispatcher
	bookings  *BookingService
	avail     *AvailabilityService
	reviews   *ReviewService
	reconcile *Reconciler

	performer uuid.UUID
	customer  uuid.UUID
	listing   *model.Listing
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	env := &testEnv{
		store:     memory.New(),
		clock:     &clock{now: testNow},
		notes:     &recorder{},
		performer: uuid.New(),
		customer:  uuid.New(),
	}
	env.listing = &model.Listing{
		ID:             uuid.New(),
		OwnerID:        env.performer,
		Title:          "Piano tuning",
		BaseHourlyRate: 4000,
		IsActive:       true,
	}
	env.store.PutListing(env.listing)

	env.events = NewDispatcher(env.notes, nil, logger)
	t.Cleanup(env.events.Wait)

	env.bookings = NewBookingService(env.store.Bookings(), env.store.Listings(), env.store.Availability(), env.events, time.UTC, logger).
		WithClock(env.clock.Now)
	env.avail = NewAvailabilityService(env.store.Listings(), env.store.Availability(), time.UTC, logger).
		WithClock(env.clock.Now)
	env.reviews = NewReviewService(env.store.Bookings(), env.store.Reviews(), env.events, logger).
		WithClock(env.clock.Now)
	env.reconcile = NewReconciler(env.store.Bookings(), env.events, logger).
		WithClock(env.clock.Now)
	return env
}

func (env *testEnv) request(jobDate time.Time, minutes int) CreateBookingRequest {
	return CreateBookingRequest{
		CustomerID:      env.customer,
		PerformerID:     env.performer,
		ServiceID:       env.listing.ID,
		JobDate:         jobDate,
		DurationMinutes: minutes,
	}
}

func (env *testEnv) create(t *testing.T, jobDate time.Time, minutes int) *model.Booking {
	t.Helper()
	b, err := env.bookings.CreateBooking(context.Background(), env.request(jobDate, minutes))
	require.NoError(t, err)
	return b
}

// booked создаёт бронирование и проводит его через accepted в booked
func (env *testEnv) booked(t *testing.T, jobDate time.Time, minutes int) *model.Booking {
	t.Helper()
	ctx := context.Background()
	b := env.create(t, jobDate, minutes)
	_, err := env.bookings.RequestTransition(ctx, b.ID, env.performer, model.BookingStatusAccepted, "")
	require.NoError(t, err)
	b, err = env.bookings.RequestTransition(ctx, b.ID, env.performer, model.BookingStatusBooked, "")
	require.NoError(t, err)
	return b
}

// completed доводит бронирование до completed переводом часов за конец работы
func (env *testEnv) completed(t *testing.T, jobDate time.Time, minutes int) *model.Booking {
	t.Helper()
	b := env.booked(t, jobDate, minutes)
	env.clock.Set(b.EndsAt().Add(time.Minute))
	b, err := env.bookings.GetBooking(context.Background(), b.ID, env.customer)
	require.NoError(t, err)
	require.Equal(t, model.BookingStatusCompleted, b.Status)
	return b
}

func (env *testEnv) settle() {
	env.events.Wait()
}
