package lifecycle

import (
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status model.BookingStatus
		now    time.Time
		want   model.BookingStatus
		ok     bool
	}{
		{"booked before start", model.BookingStatusBooked, start.Add(-time.Minute), "", false},
		{"booked at start", model.BookingStatusBooked, start, model.BookingStatusInProgress, true},
		{"accepted at start", model.BookingStatusAccepted, start.Add(time.Minute), model.BookingStatusInProgress, true},
		{"deposit sent at start", model.BookingStatusDepositSent, start.Add(time.Minute), model.BookingStatusInProgress, true},
		{"in progress mid job", model.BookingStatusInProgress, start.Add(30 * time.Minute), "", false},
		{"in progress at end", model.BookingStatusInProgress, start.Add(time.Hour), model.BookingStatusCompleted, true},
		{"accepted long after end jumps to completed", model.BookingStatusAccepted, start.Add(61 * time.Minute), model.BookingStatusCompleted, true},
		{"booked long after end jumps to completed", model.BookingStatusBooked, start.Add(48 * time.Hour), model.BookingStatusCompleted, true},
		{"pending at job date", model.BookingStatusPending, start, "", false},
		{"pending after job date", model.BookingStatusPending, start.Add(time.Second), model.BookingStatusExpired, true},
		{"cancelled is skipped", model.BookingStatusCancelled, start.Add(48 * time.Hour), "", false},
		{"verified is skipped", model.BookingStatusVerified, start.Add(48 * time.Hour), "", false},
		{"completed is skipped", model.BookingStatusCompleted, start.Add(48 * time.Hour), "", false},
		{"expired is skipped", model.BookingStatusExpired, start.Add(48 * time.Hour), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(tt.status)
			b.JobDate = start
			got, ok := Reconcile(b, tt.now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileNeverRegresses(t *testing.T) {
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)
	for _, s := range model.BookingStatuses {
		for _, offset := range []time.Duration{-time.Hour, 0, 30 * time.Minute, time.Hour, 240 * time.Hour} {
			b := newBooking(s)
			b.JobDate = start
			to, ok := Reconcile(b, start.Add(offset))
			if !ok {
				continue
			}
			if to == model.BookingStatusExpired {
				assert.Equal(t, model.BookingStatusPending, s)
				continue
			}
			assert.Greaterf(t, to.Rank(), s.Rank(), "%s -> %s", s, to)

			// Каждое продвижение допустимо по таблице переходов для системы
			require.NoErrorf(t, Check(b, SystemActor, to, ExpiredReason), "%s -> %s", s, to)
		}
	}
}

func TestReconcileUpdateExpiry(t *testing.T) {
	b := newBooking(model.BookingStatusPending)
	now := b.JobDate.Add(24 * time.Hour)

	upd, ok := ReconcileUpdate(b, now)
	require.True(t, ok)
	assert.Equal(t, model.BookingStatusExpired, upd.To)
	assert.Equal(t, ExpiredReason, upd.Reason)
	assert.Nil(t, upd.ActorID)

	upd.Apply(b)
	assert.Nil(t, b.LastActionBy)
	require.NotNil(t, b.CancelledAt)
	assert.Equal(t, ExpiredReason, b.CancellationReason)
}
