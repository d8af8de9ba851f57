package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
)

// Хранилища, которые нужны сервисам. Реализации: repository (Postgres)
// и repository/memory. Отсутствующая строка возвращается как (nil, nil).

type BookingStore interface {
	// Create вставляет бронирование; repository.ErrSlotTaken если день исполнителя
	// по этой услуге уже занят активным бронированием
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// ApplyStatus атомарно проверяет upd.From и применяет переход вместе с захватом
	// или освобождением слота. При несовпадении статуса возвращает текущее
	// бронирование и repository.ErrStatusChanged.
	ApplyStatus(ctx context.Context, id uuid.UUID, upd model.StatusUpdate) (*model.Booking, error)
	UpdateQuote(ctx context.Context, id uuid.UUID, upd model.QuoteUpdate) (*model.Booking, error)
	// ListDue бронирования, которые к моменту now должна продвинуть сверка,
	// по возрастанию (job_date, id) строго после after; after=nil с начала
	ListDue(ctx context.Context, now time.Time, after *model.DueCursor, limit int) ([]*model.Booking, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Booking, error)
}

type ListingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error)
}

type AvailabilityStore interface {
	// ListByProvider записи исполнителя по всем услугам в [from, to)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.AvailabilityEntry, error)
	// BulkUpsert перезаписывает записи, кроме занятых бронированиями; возвращает пропущенные даты
	BulkUpsert(ctx context.Context, entries []model.AvailabilityEntry) ([]time.Time, error)
}

type ReviewStore interface {
	Get(ctx context.Context, jobID, reviewerID uuid.UUID) (*model.Review, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Review, error)
	// UpsertAndReveal сохраняет отзыв (только пока он не опубликован) и, если у
	// работы есть отзыв второй стороны, публикует оба в той же транзакции
	UpsertAndReveal(ctx context.Context, r *model.Review, at time.Time) (bool, error)
	// PublishExpired публикует отзывы работ, закончившихся раньше endedBefore
	PublishExpired(ctx context.Context, endedBefore, at time.Time) ([]*model.Review, error)
}

// Notifier внешняя доставка уведомлений
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error
}

// Broadcaster real-time канал пользователя
type Broadcaster interface {
	Broadcast(ctx context.Context, userID uuid.UUID, eventType string, payload any) error
}
