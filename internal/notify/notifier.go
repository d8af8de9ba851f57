// Package notify доставка уведомлений участникам бронирований во внешние каналы
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier канал доставки; совпадает с service.Notifier
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error
}

// Fanout отправляет уведомление во все каналы. Ошибка одного канала
// не мешает остальным; все ошибки возвращаются вместе.
type Fanout struct {
	channels []Notifier
}

func NewFanout(channels ...Notifier) *Fanout {
	var active []Notifier
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Fanout{channels: active}
}

func (f *Fanout) Notify(ctx context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.Notify(ctx, userID, kind, jobID); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// Log пишет уведомления в лог. Используется, когда внешние каналы не настроены.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error {
	l.logger.Info("Notification",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.String("job_id", jobID.String()),
	)
	return nil
}
