package availability

import (
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newListing(window int) *model.Listing {
	return &model.Listing{
		ID:                     uuid.New(),
		OwnerID:                uuid.New(),
		BaseHourlyRate:         5000,
		AvailabilityWindowDays: window,
		IsActive:               true,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func price(v int64) *int64 { return &v }

func TestResolveDefaultWindow(t *testing.T) {
	l := newListing(10)
	in := Input{Listing: l, ViewerID: uuid.New(), Now: now}

	cal := Resolve(in, day(2026, 10, 1))
	require.Len(t, cal.Days, 31)
	assert.Equal(t, "2026-10", cal.Month)
	assert.Equal(t, int64(5000), cal.BasePrice)
	assert.Equal(t, 10, cal.AvailabilityWindowDays)

	windowEnd := day(2026, 10, 25)
	for key, v := range cal.Days {
		d, err := time.Parse(model.DateLayout, key)
		require.NoError(t, err)

		if d.After(windowEnd) {
			assert.Equalf(t, model.AvailabilityUnavailable, v.Status, key)
			assert.Nilf(t, v.Price, key)
			assert.Falsef(t, v.Bookable, key)
			continue
		}
		assert.Equalf(t, model.AvailabilityAvailable, v.Status, key)
		require.NotNilf(t, v.Price, key)
		assert.Equalf(t, int64(5000), *v.Price, key)
		assert.Equalf(t, !d.Before(day(2026, 10, 15)), v.Bookable, key)
	}
}

func TestResolvePastDaysAreNeverBookable(t *testing.T) {
	l := newListing(60)
	in := Input{
		Listing: l,
		Now:     now,
		Entries: []model.AvailabilityEntry{
			{ProviderID: l.OwnerID, ServiceID: l.ID, Date: day(2026, 10, 3), IsAvailable: true, Status: model.AvailabilityAvailable},
		},
	}

	v := ResolveDay(in, day(2026, 10, 3))
	assert.True(t, v.IsPast)
	assert.Equal(t, model.AvailabilityAvailable, v.Status)
	assert.False(t, v.Bookable)

	v = ResolveDay(in, day(2026, 10, 15))
	assert.False(t, v.IsPast)
	assert.True(t, v.Bookable)
}

func TestResolveExplicitOverrideWins(t *testing.T) {
	l := newListing(10)
	bookingID := uuid.New()
	entries := []model.AvailabilityEntry{
		// открыт за пределами окна с особой ценой
		{ProviderID: l.OwnerID, ServiceID: l.ID, Date: day(2026, 11, 20), IsAvailable: true, Status: model.AvailabilityAvailable, CustomPrice: price(7500)},
		// закрыт внутри окна
		{ProviderID: l.OwnerID, ServiceID: l.ID, Date: day(2026, 10, 17), Status: model.AvailabilityUnavailable},
		// забронирован
		{ProviderID: l.OwnerID, ServiceID: l.ID, Date: day(2026, 10, 18), Status: model.AvailabilityBooked, BookingID: &bookingID},
		// явная запись в прошлом
		{ProviderID: l.OwnerID, ServiceID: l.ID, Date: day(2026, 10, 1), Status: model.AvailabilityUnavailable},
	}
	in := Input{Listing: l, Entries: entries, ViewerID: uuid.New(), Now: now}

	open := ResolveDay(in, day(2026, 11, 20))
	assert.True(t, open.Explicit)
	assert.Equal(t, model.AvailabilityAvailable, open.Status)
	require.NotNil(t, open.Price)
	assert.Equal(t, int64(7500), *open.Price)
	assert.True(t, open.Bookable)

	closed := ResolveDay(in, day(2026, 10, 17))
	assert.Equal(t, model.AvailabilityUnavailable, closed.Status)
	assert.False(t, closed.Bookable)

	booked := ResolveDay(in, day(2026, 10, 18))
	assert.Equal(t, model.AvailabilityBooked, booked.Status)
	assert.False(t, booked.Bookable)
	assert.Nil(t, booked.Conflict, "booking identity is hidden from seekers")

	past := ResolveDay(in, day(2026, 10, 1))
	assert.Equal(t, model.AvailabilityUnavailable, past.Status)

	in.ViewerID = l.OwnerID
	booked = ResolveDay(in, day(2026, 10, 18))
	require.NotNil(t, booked.Conflict)
	assert.Equal(t, bookingID, *booked.Conflict.BookingID)
}

func TestResolveCrossServiceConflict(t *testing.T) {
	l := newListing(60)
	otherService := uuid.New()
	otherBooking := uuid.New()
	in := Input{
		Listing: l,
		Now:     now,
		Entries: []model.AvailabilityEntry{
			{ProviderID: l.OwnerID, ServiceID: otherService, Date: day(2026, 10, 20), Status: model.AvailabilityBooked, BookingID: &otherBooking},
			{ProviderID: l.OwnerID, ServiceID: otherService, Date: day(2026, 10, 21), Status: model.AvailabilityUnavailable},
			{ProviderID: l.OwnerID, ServiceID: otherService, Date: day(2026, 10, 22), IsAvailable: true, Status: model.AvailabilityAvailable},
			// чужой исполнитель не влияет
			{ProviderID: uuid.New(), ServiceID: uuid.New(), Date: day(2026, 10, 23), Status: model.AvailabilityBooked},
		},
	}

	seeker := in
	seeker.ViewerID = uuid.New()
	v := ResolveDay(seeker, day(2026, 10, 20))
	assert.Equal(t, model.AvailabilityUnavailable, v.Status)
	assert.Nil(t, v.Conflict)
	assert.Nil(t, v.Price)
	assert.False(t, v.Bookable)

	owner := in
	owner.ViewerID = l.OwnerID
	v = ResolveDay(owner, day(2026, 10, 20))
	assert.Equal(t, model.AvailabilityUnavailable, v.Status)
	require.NotNil(t, v.Conflict)
	assert.Equal(t, otherService, v.Conflict.ServiceID)
	assert.Equal(t, otherBooking, *v.Conflict.BookingID)

	v = ResolveDay(owner, day(2026, 10, 21))
	assert.Equal(t, model.AvailabilityUnavailable, v.Status)
	require.NotNil(t, v.Conflict)
	assert.Nil(t, v.Conflict.BookingID)

	assert.True(t, ResolveDay(seeker, day(2026, 10, 22)).Bookable)
	assert.True(t, ResolveDay(seeker, day(2026, 10, 23)).Bookable)
}

func TestResolveUsesViewerTimezoneForToday(t *testing.T) {
	l := newListing(60)
	loc := time.FixedZone("UTC+5", 5*3600)
	late := time.Date(2026, 10, 15, 21, 0, 0, 0, time.UTC) // уже 16 октября в UTC+5

	in := Input{Listing: l, Now: late, Location: loc}
	assert.True(t, ResolveDay(in, day(2026, 10, 15)).IsPast)

	in.Location = nil
	assert.False(t, ResolveDay(in, day(2026, 10, 15)).IsPast)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-02")
	require.NoError(t, err)
	from, to := MonthRange(m)
	assert.Equal(t, day(2026, 2, 1), from)
	assert.Equal(t, day(2026, 3, 1), to)

	_, err = ParseMonth("February")
	assert.Error(t, err)
}
