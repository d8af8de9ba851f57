// Package availability вычисляет календарь доступности исполнителя:
// явные записи поверх политики окна и конфликты между услугами одного исполнителя.
package availability

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
)

// MonthLayout формат месяца в запросах
const MonthLayout = "2006-01"

// Conflict занятость исполнителя другой услугой в этот день
type Conflict struct {
	ServiceID uuid.UUID                `json:"service_id"`
	BookingID *uuid.UUID               `json:"booking_id,omitempty"`
	Status    model.AvailabilityStatus `json:"status"`
}

// DayView итоговое состояние дня для конкретного зрителя
type DayView struct {
	Date     string                   `json:"date"`
	Status   model.AvailabilityStatus `json:"status"`
	Price    *int64                   `json:"price,omitempty"`
	Bookable bool                     `json:"bookable"`
	IsPast   bool                     `json:"is_past"`
	Explicit bool                     `json:"explicit"` // день задан явной записью
	Conflict *Conflict                `json:"conflict,omitempty"`
}

type Calendar struct {
	ProviderID             uuid.UUID          `json:"provider_id"`
	ServiceID              uuid.UUID          `json:"service_id"`
	Month                  string             `json:"month"`
	BasePrice              int64              `json:"base_price"`
	AvailabilityWindowDays int                `json:"availability_window_days"`
	Days                   map[string]DayView `json:"days"`
}

// Input всё, что нужно для расчёта без обращения к хранилищу
type Input struct {
	Listing *model.Listing
	// Entries явные записи исполнителя за период по всем его услугам
	Entries  []model.AvailabilityEntry
	ViewerID uuid.UUID
	Now      time.Time
	Location *time.Location
}

// ParseMonth разбирает "YYYY-MM" в первое число месяца (UTC)
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}

// MonthRange первый день месяца и первый день следующего
func MonthRange(month time.Time) (time.Time, time.Time) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, 0)
}

// Resolve строит календарь на месяц
func Resolve(in Input, month time.Time) *Calendar {
	from, to := MonthRange(month)
	idx := index(in)

	cal := &Calendar{
		ProviderID:             in.Listing.OwnerID,
		ServiceID:              in.Listing.ID,
		Month:                  from.Format(MonthLayout),
		BasePrice:              in.Listing.BaseHourlyRate,
		AvailabilityWindowDays: in.Listing.WindowDays(),
		Days:                   make(map[string]DayView, 31),
	}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		cal.Days[d.Format(model.DateLayout)] = idx.day(in, d)
	}
	return cal
}

// ResolveDay состояние одного дня
func ResolveDay(in Input, date time.Time) DayView {
	return index(in).day(in, model.DayOf(date, time.UTC))
}

type entryIndex struct {
	own    map[time.Time]model.AvailabilityEntry
	others map[time.Time][]model.AvailabilityEntry
}

func index(in Input) entryIndex {
	idx := entryIndex{
		own:    make(map[time.Time]model.AvailabilityEntry),
		others: make(map[time.Time][]model.AvailabilityEntry),
	}
	for _, e := range in.Entries {
		if e.ProviderID != in.Listing.OwnerID {
			continue
		}
		day := model.DayOf(e.Date, time.UTC)
		if e.ServiceID == in.Listing.ID {
			idx.own[day] = e
			continue
		}
		idx.others[day] = append(idx.others[day], e)
	}
	return idx
}

func (idx entryIndex) day(in Input, date time.Time) DayView {
	today := model.DayOf(in.Now, in.Location)
	view := DayView{
		Date:   date.Format(model.DateLayout),
		IsPast: date.Before(today),
	}

	if e, ok := idx.own[date]; ok {
		// Явная запись сильнее политики окна в обе стороны
		view.Explicit = true
		view.Status = e.Status
		if e.Status == model.AvailabilityAvailable {
			view.Price = priceOf(in.Listing, e.CustomPrice)
		}
		if e.Status == model.AvailabilityBooked && in.ViewerID == in.Listing.OwnerID && e.BookingID != nil {
			view.Conflict = &Conflict{ServiceID: e.ServiceID, BookingID: e.BookingID, Status: e.Status}
		}
	} else {
		windowEnd := today.AddDate(0, 0, in.Listing.WindowDays())
		if date.After(windowEnd) {
			view.Status = model.AvailabilityUnavailable
		} else {
			view.Status = model.AvailabilityAvailable
			view.Price = priceOf(in.Listing, nil)
		}
	}

	// Время исполнителя одно на все его услуги
	if view.Status == model.AvailabilityAvailable {
		if c, ok := idx.conflict(date); ok {
			view.Status = model.AvailabilityUnavailable
			view.Price = nil
			if in.ViewerID == in.Listing.OwnerID {
				view.Conflict = c
			}
		}
	}

	view.Bookable = !view.IsPast && view.Status == model.AvailabilityAvailable
	return view
}

func (idx entryIndex) conflict(date time.Time) (*Conflict, bool) {
	for _, e := range idx.others[date] {
		if e.Status == model.AvailabilityBooked || e.Status == model.AvailabilityUnavailable {
			return &Conflict{ServiceID: e.ServiceID, BookingID: e.BookingID, Status: e.Status}, true
		}
	}
	return nil, false
}

func priceOf(l *model.Listing, custom *int64) *int64 {
	p := l.BaseHourlyRate
	if custom != nil {
		p = *custom
	}
	return &p
}
