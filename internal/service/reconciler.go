package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/lifecycle"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepBatch = 200
	maxWriteAttempts  = 3
)

// advancer продвигает бронирование по времени. Используется и фоновой сверкой,
// и ленивой сверкой при чтении.
type advancer struct {
	bookings BookingStore
	events   *Dispatcher
	logger   *zap.Logger
}

// advance применяет все положенные к моменту now системные переходы.
// Конкурентная запись другим процессом не ошибка: перечитываем и проверяем заново.
func (a *advancer) advance(ctx context.Context, b *model.Booking, now time.Time) (*model.Booking, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		upd, ok := lifecycle.ReconcileUpdate(b, now)
		if !ok {
			return b, nil
		}

		updated, err := a.bookings.ApplyStatus(ctx, b.ID, upd)
		switch {
		case err == nil:
			a.logger.Info("Booking advanced by time",
				zap.String("booking_id", b.ID.String()),
				zap.String("from", string(upd.From)),
				zap.String("to", string(updated.Status)),
			)
			a.events.BookingChanged(updated, nil, model.NotifyStatusChanged)
			if updated.Status == model.BookingStatusCompleted {
				for _, userID := range updated.Participants() {
					a.events.Notify(userID, model.NotifyReviewWindowOpen, updated.ID)
				}
			}
			b = updated
		case errors.Is(err, repository.ErrStatusChanged):
			if updated == nil {
				return nil, nil
			}
			b = updated
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil
		default:
			return b, fmt.Errorf("advance booking %s: %w", b.ID, err)
		}
	}
	return b, nil
}

// SweepResult итог одного прохода сверки
type SweepResult struct {
	Scanned  int
	Advanced int
	Failed   int
}

// Reconciler периодическая сверка статусов по времени
type Reconciler struct {
	adv       *advancer
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
}

func NewReconciler(bookings BookingStore, events *Dispatcher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		adv:       &advancer{bookings: bookings, events: events, logger: logger},
		logger:    logger,
		now:       time.Now,
		batchSize: defaultSweepBatch,
	}
}

// WithClock подменяет источник времени
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// WithBatchSize размер страницы выборки
func (r *Reconciler) WithBatchSize(n int) *Reconciler {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// Sweep проходит по всем бронированиям, которым пора сменить статус.
// Ошибка одной записи логируется и не останавливает проход.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := r.now()

	var cursor *model.DueCursor
	for {
		batch, err := r.adv.bookings.ListDue(ctx, now, cursor, r.batchSize)
		if err != nil {
			return res, fmt.Errorf("list due bookings: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		cursor = model.DueCursorOf(batch[len(batch)-1])

		for _, b := range batch {
			res.Scanned++

			before := b.Status
			after, err := r.adv.advance(ctx, b, now)
			if err != nil {
				res.Failed++
				r.logger.Error("Failed to reconcile booking",
					zap.String("booking_id", b.ID.String()),
					zap.Error(err),
				)
				continue
			}
			if after != nil && after.Status != before {
				res.Advanced++
			}
		}

		if len(batch) < r.batchSize {
			break
		}
	}

	r.logger.Info("Reconcile sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("advanced", res.Advanced),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
