// Package memory хранилище в памяти процесса с теми же контрактами, что и Postgres.
// Все операции сериализуются одним мьютексом; наружу отдаются только копии.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
)

type reviewKey struct {
	jobID      uuid.UUID
	reviewerID uuid.UUID
}

// Store общее состояние. Отдельные представления (Bookings, Listings, ...)
// реализуют интерфейсы хранилищ сервисов.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*model.User
	listings map[uuid.UUID]*model.Listing
	bookings map[uuid.UUID]*model.Booking
	entries  map[model.SlotKey]model.AvailabilityEntry
	reviews  map[reviewKey]*model.Review
}

// New создаёт пустое хранилище
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*model.User),
		listings: make(map[uuid.UUID]*model.Listing),
		bookings: make(map[uuid.UUID]*model.Booking),
		entries:  make(map[model.SlotKey]model.AvailabilityEntry),
		reviews:  make(map[reviewKey]*model.Review),
	}
}

// PutUser добавляет или заменяет пользователя
func (s *Store) PutUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *u
	s.users[u.ID] = &c
}

// PutListing добавляет или заменяет услугу
func (s *Store) PutListing(l *model.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *l
	s.listings[l.ID] = &c
}

func (s *Store) Users() *Users               { return &Users{s} }
func (s *Store) Listings() *Listings         { return &Listings{s} }
func (s *Store) Bookings() *Bookings         { return &Bookings{s} }
func (s *Store) Availability() *Availability { return &Availability{s} }
func (s *Store) Reviews() *Reviews           { return &Reviews{s} }

type Users struct{ s *Store }

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *Users) GetByTelegramChatID(_ context.Context, chatID int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Users) LinkTelegram(_ context.Context, userID uuid.UUID, chatID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range r.s.users {
		if id != userID && other.TelegramChatID != nil && *other.TelegramChatID == chatID {
			other.TelegramChatID = nil
		}
	}
	id := chatID
	u.TelegramChatID = &id
	return nil
}

type Listings struct{ s *Store }

func (r *Listings) GetByID(_ context.Context, id uuid.UUID) (*model.Listing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.listings[id]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

type Bookings struct{ s *Store }

func (r *Bookings) Create(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot := b.Slot()
	for _, existing := range r.s.bookings {
		if existing.Status.IsActive() && existing.Slot() == slot {
			return repository.ErrSlotTaken
		}
	}
	r.s.bookings[b.ID] = b.Clone()
	return nil
}

func (r *Bookings) GetByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return b.Clone(), nil
}

func (r *Bookings) ApplyStatus(_ context.Context, id uuid.UUID, upd model.StatusUpdate) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if current.Status != upd.From {
		return current.Clone(), repository.ErrStatusChanged
	}

	next := current.Clone()
	upd.Apply(next)

	if upd.ClaimSlot {
		key := next.Slot()
		e, exists := r.s.entries[key]
		if exists && e.Status == model.AvailabilityBooked && (e.BookingID == nil || *e.BookingID != next.ID) {
			return nil, repository.ErrSlotTaken
		}
		if r.s.providerDayBookedLocked(key) {
			return nil, repository.ErrSlotTaken
		}
		bookingID := next.ID
		e.ProviderID, e.ServiceID, e.Date = key.ProviderID, key.ServiceID, key.Date
		e.IsAvailable = false
		e.Status = model.AvailabilityBooked
		e.BookingID = &bookingID
		e.UpdatedAt = upd.At
		r.s.entries[key] = e
	}
	if upd.ReleaseSlot {
		r.s.releaseLocked(next.ID, upd.At)
	}

	r.s.bookings[id] = next
	return next.Clone(), nil
}

func (r *Bookings) UpdateQuote(_ context.Context, id uuid.UUID, upd model.QuoteUpdate) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if current.Status != upd.From {
		return current.Clone(), repository.ErrStatusChanged
	}

	next := current.Clone()
	actor := upd.ActorID
	next.HourlyRate = upd.HourlyRate
	next.PriceBreakdown = append([]model.PriceLine(nil), upd.PriceBreakdown...)
	next.Status = model.BookingStatusPending
	next.LastActionBy = &actor
	next.UpdatedAt = upd.At

	r.s.bookings[id] = next
	return next.Clone(), nil
}

func (r *Bookings) ListDue(_ context.Context, now time.Time, after *model.DueCursor, limit int) ([]*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.s.bookings {
		if isDue(b, now) && (after == nil || dueAfter(b, after)) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return dueAfter(out[j], model.DueCursorOf(out[i])) })
	return truncate(out, limit), nil
}

// dueAfter бронирование стоит строго после курсора в порядке (job_date, id),
// uuid сравниваются побайтно, как в Postgres
func dueAfter(b *model.Booking, c *model.DueCursor) bool {
	if !b.JobDate.Equal(c.JobDate) {
		return b.JobDate.After(c.JobDate)
	}
	return bytes.Compare(b.ID[:], c.ID[:]) > 0
}

func (r *Bookings) ListByParticipant(_ context.Context, userID uuid.UUID, limit int) ([]*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.IsParticipant(userID) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobDate.After(out[j].JobDate) })
	return truncate(out, limit), nil
}

// isDue повторяет условие выборки сверки в Postgres
func isDue(b *model.Booking, now time.Time) bool {
	switch b.Status {
	case model.BookingStatusPending:
		return b.JobDate.Before(now)
	case model.BookingStatusAccepted, model.BookingStatusDepositSent,
		model.BookingStatusDepositReceived, model.BookingStatusBooked:
		return !b.JobDate.After(now)
	case model.BookingStatusInProgress:
		return !b.EndsAt().After(now)
	}
	return false
}

func truncate(list []*model.Booking, limit int) []*model.Booking {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

// providerDayBookedLocked день исполнителя уже занят другой его услугой; вызывать под mu
func (s *Store) providerDayBookedLocked(key model.SlotKey) bool {
	for other, e := range s.entries {
		if other.ProviderID == key.ProviderID && other.Date.Equal(key.Date) &&
			other.ServiceID != key.ServiceID && e.Status == model.AvailabilityBooked {
			return true
		}
	}
	return false
}

// releaseLocked освобождает записи, занятые бронированием; вызывать под mu
func (s *Store) releaseLocked(bookingID uuid.UUID, at time.Time) {
	for key, e := range s.entries {
		if e.BookingID == nil || *e.BookingID != bookingID {
			continue
		}
		e.IsAvailable = true
		e.Status = model.AvailabilityAvailable
		e.BookingID = nil
		e.UpdatedAt = at
		s.entries[key] = e
	}
}

type Availability struct{ s *Store }

func (r *Availability) ListByProvider(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]model.AvailabilityEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.AvailabilityEntry
	for key, e := range r.s.entries {
		if key.ProviderID != providerID || key.Date.Before(from) || !key.Date.Before(to) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ServiceID.String() < out[j].ServiceID.String()
	})
	return out, nil
}

func (r *Availability) BulkUpsert(_ context.Context, entries []model.AvailabilityEntry) ([]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var skipped []time.Time
	for _, e := range entries {
		key := model.SlotKey{ProviderID: e.ProviderID, ServiceID: e.ServiceID, Date: e.Date}
		if existing, ok := r.s.entries[key]; ok && existing.Status == model.AvailabilityBooked {
			skipped = append(skipped, e.Date)
			continue
		}
		e.BookingID = nil
		r.s.entries[key] = copyEntry(e)
	}
	return skipped, nil
}

func copyEntry(e model.AvailabilityEntry) model.AvailabilityEntry {
	if e.CustomPrice != nil {
		p := *e.CustomPrice
		e.CustomPrice = &p
	}
	if e.BookingID != nil {
		id := *e.BookingID
		e.BookingID = &id
	}
	return e
}

type Reviews struct{ s *Store }

func (r *Reviews) Get(_ context.Context, jobID, reviewerID uuid.UUID) (*model.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.reviews[reviewKey{jobID, reviewerID}].Clone(), nil
}

func (r *Reviews) ListByJob(_ context.Context, jobID uuid.UUID) ([]*model.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Review
	for key, rv := range r.s.reviews {
		if key.jobID == jobID {
			out = append(out, rv.Clone())
		}
	}
	sortReviews(out)
	return out, nil
}

func (r *Reviews) UpsertAndReveal(_ context.Context, review *model.Review, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[review.JobID]; !ok {
		return false, repository.ErrNotFound
	}

	key := reviewKey{review.JobID, review.ReviewerID}
	stored := review.Clone()
	if existing, ok := r.s.reviews[key]; ok {
		if existing.IsPublished {
			return false, repository.ErrReviewLocked
		}
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	stored.IsPublished = false
	stored.PublishedAt = nil
	stored.UpdatedAt = at
	r.s.reviews[key] = stored

	counterpart := false
	for k := range r.s.reviews {
		if k.jobID == review.JobID && k.reviewerID != review.ReviewerID {
			counterpart = true
			break
		}
	}
	if !counterpart {
		return false, nil
	}

	for k, rv := range r.s.reviews {
		if k.jobID != review.JobID || rv.IsPublished {
			continue
		}
		publishedAt := at
		rv.IsPublished = true
		rv.PublishedAt = &publishedAt
		rv.UpdatedAt = at
	}
	return true, nil
}

func (r *Reviews) PublishExpired(_ context.Context, endedBefore, at time.Time) ([]*model.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Review
	for _, rv := range r.s.reviews {
		if rv.IsPublished {
			continue
		}
		b, ok := r.s.bookings[rv.JobID]
		if !ok || !b.EndsAt().Before(endedBefore) {
			continue
		}
		publishedAt := at
		rv.IsPublished = true
		rv.PublishedAt = &publishedAt
		rv.UpdatedAt = at
		out = append(out, rv.Clone())
	}
	sortReviews(out)
	return out, nil
}

func sortReviews(list []*model.Review) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ReviewerID.String() < list[j].ReviewerID.String()
	})
}
