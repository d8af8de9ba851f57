package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAvailabilityWindowDays окно, в котором дни без явной записи считаются доступными
const DefaultAvailabilityWindowDays = 60

// Listing услуга исполнителя
type Listing struct {
	ID                     uuid.UUID `json:"id"`
	OwnerID                uuid.UUID `json:"owner_id"`
	Title                  string    `json:"title"`
	BaseHourlyRate         int64     `json:"base_hourly_rate"` // в минимальных единицах валюты
	AvailabilityWindowDays int       `json:"availability_window_days"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
}

// WindowDays возвращает окно доступности с учётом значения по умолчанию
func (l *Listing) WindowDays() int {
	if l.AvailabilityWindowDays <= 0 {
		return DefaultAvailabilityWindowDays
	}
	return l.AvailabilityWindowDays
}
