package service

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher отправляет уведомления и real-time события в фоне.
// Ошибки доставки только логируются и не влияют на результат операции.
type Dispatcher struct {
	notifier    Notifier
	broadcaster Broadcaster
	logger      *zap.Logger
	timeout     time.Duration
	wg          sync.WaitGroup
}

func NewDispatcher(notifier Notifier, broadcaster Broadcaster, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
		timeout:     defaultDispatchTimeout,
	}
}

// Wait дожидается всех отправок (остановка сервиса, тесты)
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Notify уведомляет пользователя
func (d *Dispatcher) Notify(userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) {
	if d.notifier == nil {
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.notifier.Notify(ctx, userID, kind, jobID); err != nil {
			d.logger.Warn("Failed to send notification",
				zap.String("user_id", userID.String()),
				zap.String("kind", string(kind)),
				zap.String("job_id", jobID.String()),
				zap.Error(err),
			)
		}
	})
}

// Broadcast публикует событие в real-time канал пользователя
func (d *Dispatcher) Broadcast(userID uuid.UUID, eventType string, payload any) {
	if d.broadcaster == nil {
		return
	}
	d.run(func(ctx context.Context) {
		if err := d.broadcaster.Broadcast(ctx, userID, eventType, payload); err != nil {
			d.logger.Warn("Failed to broadcast event",
				zap.String("user_id", userID.String()),
				zap.String("event", eventType),
				zap.Error(err),
			)
		}
	})
}

// BookingChanged рассылает обновлённое бронирование обоим участникам и
// уведомляет тех, кто изменение не инициировал. Для системных переходов
// (initiator == nil) уведомляются оба.
func (d *Dispatcher) BookingChanged(b *model.Booking, initiator *uuid.UUID, kind model.NotificationKind) {
	snapshot := b.Clone()
	for _, userID := range snapshot.Participants() {
		d.Broadcast(userID, model.EventBookingUpdated, snapshot)
		if initiator != nil && *initiator == userID {
			continue
		}
		d.Notify(userID, kind, snapshot.ID)
	}
}

func (d *Dispatcher) run(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Контекст запроса к этому моменту может быть уже отменён
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		fn(ctx)
	}()
}
