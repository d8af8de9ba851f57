package model

import (
	"time"

	"github.com/google/uuid"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityBooked      AvailabilityStatus = "booked"
)

// DateLayout формат календарной даты в ключах и API
const DateLayout = "2006-01-02"

// AvailabilityEntry явная запись о дне исполнителя для конкретной услуги.
// Отсутствие записи значимо: день разрешается по политике окна.
type AvailabilityEntry struct {
	ProviderID  uuid.UUID          `json:"provider_id"`
	ServiceID   uuid.UUID          `json:"service_id"`
	Date        time.Time          `json:"date"` // полночь UTC календарного дня
	IsAvailable bool               `json:"is_available"`
	Status      AvailabilityStatus `json:"status"`
	CustomPrice *int64             `json:"custom_price"`
	BookingID   *uuid.UUID         `json:"booking_id"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// SlotKey ключ записи доступности
type SlotKey struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	Date       time.Time
}

// DayOf приводит момент времени к календарному дню в заданной зоне
// и возвращает его как полночь UTC
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
