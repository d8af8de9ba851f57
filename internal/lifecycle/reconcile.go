package lifecycle

import (
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
)

// ExpiredReason причина для запросов, оставшихся без ответа к дате работы
const ExpiredReason = "request expired"

// Reconcile возвращает статус, в который бронирование должно перейти к моменту now.
// Порядок правил важен: просроченное окно работы сразу даёт completed,
// минуя in_progress.
func Reconcile(b *model.Booking, now time.Time) (model.BookingStatus, bool) {
	switch b.Status {
	case model.BookingStatusAccepted,
		model.BookingStatusDepositSent,
		model.BookingStatusDepositReceived,
		model.BookingStatusBooked,
		model.BookingStatusInProgress:
		if !now.Before(b.EndsAt()) {
			return model.BookingStatusCompleted, true
		}
		if b.Status != model.BookingStatusInProgress && !now.Before(b.JobDate) {
			return model.BookingStatusInProgress, true
		}
	case model.BookingStatusPending:
		// Истечение считается от запланированного времени работы, а не от создания
		if now.After(b.JobDate) {
			return model.BookingStatusExpired, true
		}
	}
	return "", false
}

// ReconcileUpdate строит системную условную запись для Reconcile
func ReconcileUpdate(b *model.Booking, now time.Time) (model.StatusUpdate, bool) {
	to, ok := Reconcile(b, now)
	if !ok {
		return model.StatusUpdate{}, false
	}
	upd := model.StatusUpdate{
		From: b.Status,
		To:   to,
		At:   now,
	}
	if to == model.BookingStatusExpired {
		upd.Reason = ExpiredReason
		upd.ReleaseSlot = true
	}
	return upd, true
}
