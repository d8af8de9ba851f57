package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(status model.BookingStatus) *model.Booking {
	customer := uuid.New()
	return &model.Booking{
		ID:              uuid.New(),
		ServiceID:       uuid.New(),
		PerformerID:     uuid.New(),
		CustomerID:      customer,
		JobDate:         time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          status,
		LastActionBy:    &customer,
	}
}

func TestEveryStatusIsReachable(t *testing.T) {
	for _, s := range model.BookingStatuses {
		if s == model.BookingStatusPending {
			continue
		}
		_, ok := RuleFor(s)
		assert.Truef(t, ok, "no transition rule for %q", s)
	}
	for to, r := range rules {
		assert.NotEmptyf(t, r.From, "rule %q has no source statuses", to)
		assert.NotEmptyf(t, r.Reason, "rule %q has no rejection reason", to)
		assert.NotEmptyf(t, r.ActorReason, "rule %q has no actor reason", to)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  model.BookingStatus
		role    model.Role
		to      model.BookingStatus
		reason  string
		lastBy  model.Role
		wantErr error
	}{
		{"performer accepts request", model.BookingStatusPending, model.RolePerformer, model.BookingStatusAccepted, "", model.RoleCustomer, nil},
		{"customer cannot accept own request", model.BookingStatusPending, model.RoleCustomer, model.BookingStatusAccepted, "", model.RoleCustomer, ErrUnauthorized},
		{"customer accepts counter offer", model.BookingStatusPending, model.RoleCustomer, model.BookingStatusAccepted, "", model.RolePerformer, nil},
		{"performer cannot accept own counter offer", model.BookingStatusPending, model.RolePerformer, model.BookingStatusAccepted, "", model.RolePerformer, ErrUnauthorized},
		{"accept from booked", model.BookingStatusBooked, model.RolePerformer, model.BookingStatusAccepted, "", model.RoleCustomer, ErrInvalidTransition},
		{"performer books", model.BookingStatusAccepted, model.RolePerformer, model.BookingStatusBooked, "", model.RolePerformer, nil},
		{"customer cannot book", model.BookingStatusAccepted, model.RoleCustomer, model.BookingStatusBooked, "", model.RolePerformer, ErrUnauthorized},
		{"book from pending", model.BookingStatusPending, model.RolePerformer, model.BookingStatusBooked, "", model.RoleCustomer, ErrInvalidTransition},
		{"book after deposit", model.BookingStatusDepositReceived, model.RolePerformer, model.BookingStatusBooked, "", model.RolePerformer, nil},
		{"customer sends deposit", model.BookingStatusAccepted, model.RoleCustomer, model.BookingStatusDepositSent, "", model.RolePerformer, nil},
		{"performer receives deposit", model.BookingStatusDepositSent, model.RolePerformer, model.BookingStatusDepositReceived, "", model.RoleCustomer, nil},
		{"customer cannot set in progress", model.BookingStatusBooked, model.RoleCustomer, model.BookingStatusInProgress, "", model.RolePerformer, ErrUnauthorized},
		{"performer cannot set completed", model.BookingStatusInProgress, model.RolePerformer, model.BookingStatusCompleted, "", model.RolePerformer, ErrUnauthorized},
		{"system starts work", model.BookingStatusBooked, model.RoleSystem, model.BookingStatusInProgress, "", model.RolePerformer, nil},
		{"customer cancels booked", model.BookingStatusBooked, model.RoleCustomer, model.BookingStatusCancelled, "plans changed", model.RolePerformer, nil},
		{"cancel needs reason", model.BookingStatusBooked, model.RoleCustomer, model.BookingStatusCancelled, "  ", model.RolePerformer, ErrReasonRequired},
		{"performer declines request", model.BookingStatusPending, model.RolePerformer, model.BookingStatusCancelled, "busy", model.RoleCustomer, nil},
		{"performer cannot cancel accepted", model.BookingStatusAccepted, model.RolePerformer, model.BookingStatusCancelled, "busy", model.RolePerformer, ErrUnauthorized},
		{"cannot cancel in progress", model.BookingStatusInProgress, model.RoleCustomer, model.BookingStatusCancelled, "late", model.RolePerformer, ErrInvalidTransition},
		{"cannot cancel completed", model.BookingStatusCompleted, model.RoleCustomer, model.BookingStatusCancelled, "late", model.RolePerformer, ErrInvalidTransition},
		{"stranger cannot cancel", model.BookingStatusPending, model.RoleNone, model.BookingStatusCancelled, "x", model.RoleCustomer, ErrUnauthorized},
		{"users cannot expire", model.BookingStatusPending, model.RolePerformer, model.BookingStatusExpired, "", model.RoleCustomer, ErrUnauthorized},
		{"cannot request pending", model.BookingStatusAccepted, model.RolePerformer, model.BookingStatusPending, "", model.RoleCustomer, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(tt.status)
			switch tt.lastBy {
			case model.RolePerformer:
				b.LastActionBy = &b.PerformerID
			case model.RoleCustomer:
				b.LastActionBy = &b.CustomerID
			}

			actor := SystemActor
			switch tt.role {
			case model.RoleCustomer:
				actor = ActorFor(b, b.CustomerID)
			case model.RolePerformer:
				actor = ActorFor(b, b.PerformerID)
			case model.RoleNone:
				actor = ActorFor(b, uuid.New())
			}

			err := Check(b, actor, tt.to, tt.reason)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var rej *RejectError
			require.ErrorAs(t, err, &rej)
			assert.NotEmpty(t, rej.Reason)
		})
	}
}

func TestPlanIsNoopForAppliedTransition(t *testing.T) {
	b := newBooking(model.BookingStatusAccepted)
	_, changed, err := Plan(b, ActorFor(b, b.PerformerID), model.BookingStatusAccepted, "", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPlanRetryStillChecksRole(t *testing.T) {
	now := time.Now()

	booked := newBooking(model.BookingStatusBooked)
	_, changed, err := Plan(booked, ActorFor(booked, booked.CustomerID), model.BookingStatusBooked, "", now)
	assert.ErrorIs(t, err, ErrUnauthorized, "the customer never confirms a booking")
	assert.False(t, changed)

	_, _, err = Plan(booked, ActorFor(booked, uuid.New()), model.BookingStatusBooked, "", now)
	assert.ErrorIs(t, err, ErrUnauthorized)

	running := newBooking(model.BookingStatusInProgress)
	_, _, err = Plan(running, ActorFor(running, running.PerformerID), model.BookingStatusInProgress, "", now)
	assert.ErrorIs(t, err, ErrUnauthorized, "only the system starts a job")

	expired := newBooking(model.BookingStatusExpired)
	_, changed, err = Plan(expired, SystemActor, model.BookingStatusExpired, "", now)
	require.NoError(t, err)
	assert.False(t, changed)

	// Принял исполнитель: ход перешёл к заказчику, но повтор остаётся пустой операцией
	accepted := newBooking(model.BookingStatusAccepted)
	accepted.LastActionBy = &accepted.PerformerID
	_, changed, err = Plan(accepted, ActorFor(accepted, accepted.PerformerID), model.BookingStatusAccepted, "", now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPlanClaimsAndReleasesSlot(t *testing.T) {
	now := time.Now()

	b := newBooking(model.BookingStatusAccepted)
	upd, changed, err := Plan(b, ActorFor(b, b.PerformerID), model.BookingStatusBooked, "", now)
	require.NoError(t, err)
	require.True(t, changed)
	assert.True(t, upd.ClaimSlot)
	assert.Equal(t, model.BookingStatusAccepted, upd.From)
	require.NotNil(t, upd.ActorID)
	assert.Equal(t, b.PerformerID, *upd.ActorID)

	b = newBooking(model.BookingStatusBooked)
	upd, changed, err = Plan(b, ActorFor(b, b.CustomerID), model.BookingStatusCancelled, " sick ", now)
	require.NoError(t, err)
	require.True(t, changed)
	assert.True(t, upd.ReleaseSlot)
	assert.Equal(t, "sick", upd.Reason)
}

func TestPlanVerifiedNeedsBothConfirmations(t *testing.T) {
	now := time.Now()
	b := newBooking(model.BookingStatusCompleted)

	upd, changed, err := Plan(b, ActorFor(b, b.CustomerID), model.BookingStatusVerified, "", now)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, model.BookingStatusCompleted, upd.To)
	upd.Apply(b)
	require.NotNil(t, b.ConfirmedBySeekerAt)

	_, changed, err = Plan(b, ActorFor(b, b.CustomerID), model.BookingStatusVerified, "", now)
	require.NoError(t, err)
	assert.False(t, changed, "repeated confirmation is a no-op")

	upd, changed, err = Plan(b, ActorFor(b, b.PerformerID), model.BookingStatusVerified, "", now)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, model.BookingStatusVerified, upd.To)
}

func TestIsTurn(t *testing.T) {
	b := newBooking(model.BookingStatusPending)
	assert.True(t, IsTurn(b, b.PerformerID))
	assert.False(t, IsTurn(b, b.CustomerID))
	assert.False(t, IsTurn(b, uuid.New()))

	b.LastActionBy = nil
	assert.True(t, IsTurn(b, b.CustomerID))
	assert.True(t, IsTurn(b, b.PerformerID))
}
