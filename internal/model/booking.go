package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "pending"          // Запрос ожидает ответа второй стороны
	BookingStatusAccepted        BookingStatus = "accepted"         // Условия приняты
	BookingStatusDepositSent     BookingStatus = "deposit_sent"     // Заказчик отметил отправку депозита
	BookingStatusDepositReceived BookingStatus = "deposit_received" // Исполнитель подтвердил получение депозита
	BookingStatusBooked          BookingStatus = "booked"           // Слот закреплён за бронированием
	BookingStatusInProgress      BookingStatus = "in_progress"      // Работа идёт (только по времени)
	BookingStatusCompleted       BookingStatus = "completed"        // Время работы истекло (только по времени)
	BookingStatusVerified        BookingStatus = "verified"         // Обе стороны подтвердили выполнение
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusExpired         BookingStatus = "expired" // Запрос не получил ответа до даты работы
)

// BookingStatuses перечисляет все статусы в порядке жизненного цикла
var BookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusDepositSent,
	BookingStatusDepositReceived,
	BookingStatusBooked,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusVerified,
	BookingStatusCancelled,
	BookingStatusExpired,
}

// Valid сообщает, известен ли статус
func (s BookingStatus) Valid() bool {
	for _, known := range BookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusVerified, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// IsActive сообщает, занимает ли бронирование день исполнителя
func (s BookingStatus) IsActive() bool {
	return s != BookingStatusCancelled && s != BookingStatusExpired
}

// Rank задаёт порядок продвижения по основной цепочке статусов.
// Отменённые и истёкшие бронирования вне цепочки и получают -1.
func (s BookingStatus) Rank() int {
	switch s {
	case BookingStatusPending:
		return 0
	case BookingStatusAccepted:
		return 1
	case BookingStatusDepositSent:
		return 2
	case BookingStatusDepositReceived:
		return 3
	case BookingStatusBooked:
		return 4
	case BookingStatusInProgress:
		return 5
	case BookingStatusCompleted:
		return 6
	case BookingStatusVerified:
		return 7
	}
	return -1
}

type PriceLineType string

const (
	PriceLineBase     PriceLineType = "base"
	PriceLineTravel   PriceLineType = "travel"
	PriceLineCustom   PriceLineType = "custom"
	PriceLineDiscount PriceLineType = "discount"
)

// PriceLine строка расчёта стоимости. Суммы в минимальных единицах валюты,
// скидки хранятся с отрицательным знаком.
type PriceLine struct {
	Type   PriceLineType `json:"type"`
	Label  string        `json:"label"`
	Amount int64         `json:"amount"`
}

type Booking struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	PerformerID uuid.UUID `json:"performer_id"`
	CustomerID  uuid.UUID `json:"customer_id"`

	JobDate         time.Time `json:"job_date"`
	SlotDate        time.Time `json:"slot_date"`  // календарный день работы в зоне площадки, полночь UTC
	StartTime       string    `json:"start_time"` // для отображения, например "14:30"
	DurationMinutes int       `json:"duration"`

	HourlyRate     int64       `json:"hourly_rate"`
	PriceBreakdown []PriceLine `json:"price_breakdown"`

	Status                BookingStatus `json:"status"`
	LastActionBy          *uuid.UUID    `json:"last_action_by"` // nil - действие системы
	ConfirmedByProviderAt *time.Time    `json:"confirmed_by_provider_at"`
	ConfirmedBySeekerAt   *time.Time    `json:"confirmed_by_seeker_at"`
	CancellationReason    string        `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time    `json:"cancelled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total сумма по строкам расчёта; отдельно не хранится
func (b *Booking) Total() int64 {
	var total int64
	for _, line := range b.PriceBreakdown {
		total += line.Amount
	}
	return total
}

// EndsAt время окончания работы
func (b *Booking) EndsAt() time.Time {
	return b.JobDate.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// IsParticipant проверяет что пользователь одна из сторон бронирования
func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return userID == b.CustomerID || userID == b.PerformerID
}

// Counterpart возвращает вторую сторону бронирования
func (b *Booking) Counterpart(userID uuid.UUID) uuid.UUID {
	if userID == b.CustomerID {
		return b.PerformerID
	}
	return b.CustomerID
}

// Slot ключ записи доступности, которую занимает бронирование
func (b *Booking) Slot() SlotKey {
	return SlotKey{ProviderID: b.PerformerID, ServiceID: b.ServiceID, Date: b.SlotDate}
}

// Participants заказчик и исполнитель
func (b *Booking) Participants() []uuid.UUID {
	return []uuid.UUID{b.CustomerID, b.PerformerID}
}

// Clone глубокая копия, чтобы хранилища не делили срезы и указатели с вызывающим кодом
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.PriceBreakdown = append([]PriceLine(nil), b.PriceBreakdown...)
	c.LastActionBy = cloneUUID(b.LastActionBy)
	c.ConfirmedByProviderAt = cloneTime(b.ConfirmedByProviderAt)
	c.ConfirmedBySeekerAt = cloneTime(b.ConfirmedBySeekerAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	return &c
}

// DueCursor позиция постраничного обхода сверки: выборка идёт по (JobDate, ID)
// строго после курсора
type DueCursor struct {
	JobDate time.Time
	ID      uuid.UUID
}

// DueCursorOf курсор сразу за бронированием
func DueCursorOf(b *Booking) *DueCursor {
	return &DueCursor{JobDate: b.JobDate, ID: b.ID}
}

// StatusUpdate описывает условную запись статуса: применяется только если
// текущий статус в хранилище всё ещё равен From.
type StatusUpdate struct {
	From        BookingStatus
	To          BookingStatus
	ActorID     *uuid.UUID
	At          time.Time
	Reason      string // причина отмены/истечения
	ConfirmedBy Role   // чьё подтверждение выполнения записать (для verified)
	ClaimSlot   bool   // занять запись доступности (исполнитель, услуга, SlotDate) за бронированием
	ReleaseSlot bool   // освободить запись доступности, занятую бронированием
}

// Apply переносит изменения на копию бронирования в памяти
func (u StatusUpdate) Apply(b *Booking) {
	b.Status = u.To
	b.LastActionBy = cloneUUID(u.ActorID)
	b.UpdatedAt = u.At
	switch u.ConfirmedBy {
	case RolePerformer:
		at := u.At
		b.ConfirmedByProviderAt = &at
	case RoleCustomer:
		at := u.At
		b.ConfirmedBySeekerAt = &at
	}
	if u.To == BookingStatusCancelled || u.To == BookingStatusExpired {
		at := u.At
		b.CancelledAt = &at
		b.CancellationReason = u.Reason
	}
}

// QuoteUpdate новая цена от исполнителя; возвращает бронирование в pending
type QuoteUpdate struct {
	From           BookingStatus
	ActorID        uuid.UUID
	HourlyRate     int64
	PriceBreakdown []PriceLine
	At             time.Time
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
