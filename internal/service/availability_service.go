package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/availability"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBulkDates ограничение на одну массовую правку календаря
const maxBulkDates = 366

type AvailabilityService struct {
	listings     ListingStore
	availability AvailabilityStore
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewAvailabilityService(listings ListingStore, availability AvailabilityStore, loc *time.Location, logger *zap.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{
		listings:     listings,
		availability: availability,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock подменяет источник времени
func (s *AvailabilityService) WithClock(now func() time.Time) *AvailabilityService {
	s.now = now
	return s
}

// GetAvailability календарь услуги на месяц глазами viewerID
func (s *AvailabilityService) GetAvailability(ctx context.Context, viewerID, providerID, serviceID uuid.UUID, month string) (*availability.Calendar, error) {
	if providerID == uuid.Nil || serviceID == uuid.Nil {
		return nil, validationErr("provider and service are required")
	}
	start, err := availability.ParseMonth(month)
	if err != nil {
		return nil, validationErr("month must be in YYYY-MM format")
	}

	listing, err := s.listing(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}

	from, to := availability.MonthRange(start)
	entries, err := s.availability.ListByProvider(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	return availability.Resolve(availability.Input{
		Listing:  listing,
		Entries:  entries,
		ViewerID: viewerID,
		Now:      s.now(),
		Location: s.loc,
	}, start), nil
}

// BulkResult итог массовой правки
type BulkResult struct {
	Updated       []string `json:"updated"`
	SkippedBooked []string `json:"skipped_booked"` // занятые бронированием дни не меняются
}

// BulkSetAvailability открывает или закрывает набор дней услуги.
// Дни, занятые бронированием, остаются как есть и возвращаются отдельно.
func (s *AvailabilityService) BulkSetAvailability(
	ctx context.Context,
	actorID, providerID, serviceID uuid.UUID,
	dates []time.Time,
	available bool,
	price *int64,
) (*BulkResult, error) {
	if providerID == uuid.Nil || serviceID == uuid.Nil {
		return nil, validationErr("provider and service are required")
	}
	if len(dates) == 0 {
		return nil, validationErr("at least one date is required")
	}
	if len(dates) > maxBulkDates {
		return nil, validationErr("no more than %d dates at once", maxBulkDates)
	}
	if price != nil && *price < 0 {
		return nil, validationErr("price must not be negative")
	}
	if actorID != providerID {
		return nil, unauthorizedErr("only the provider can edit their calendar")
	}

	listing, err := s.listing(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := model.AvailabilityUnavailable
	if available {
		status = model.AvailabilityAvailable
	}

	seen := make(map[time.Time]struct{}, len(dates))
	entries := make([]model.AvailabilityEntry, 0, len(dates))
	for _, d := range dates {
		day := model.DayOf(d, time.UTC)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		entries = append(entries, model.AvailabilityEntry{
			ProviderID:  listing.OwnerID,
			ServiceID:   listing.ID,
			Date:        day,
			IsAvailable: available,
			Status:      status,
			CustomPrice: price,
			UpdatedAt:   now,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })

	skipped, err := s.availability.BulkUpsert(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("bulk upsert availability: %w", err)
	}

	skippedSet := make(map[time.Time]struct{}, len(skipped))
	res := &BulkResult{Updated: []string{}, SkippedBooked: []string{}}
	for _, d := range skipped {
		day := model.DayOf(d, time.UTC)
		skippedSet[day] = struct{}{}
		res.SkippedBooked = append(res.SkippedBooked, day.Format(model.DateLayout))
	}
	for _, e := range entries {
		if _, ok := skippedSet[e.Date]; ok {
			continue
		}
		res.Updated = append(res.Updated, e.Date.Format(model.DateLayout))
	}
	sort.Strings(res.SkippedBooked)

	s.logger.Info("Availability updated",
		zap.String("provider_id", providerID.String()),
		zap.String("service_id", serviceID.String()),
		zap.Bool("available", available),
		zap.Int("updated", len(res.Updated)),
		zap.Int("skipped_booked", len(res.SkippedBooked)),
	)
	return res, nil
}

func (s *AvailabilityService) listing(ctx context.Context, providerID, serviceID uuid.UUID) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil || listing.OwnerID != providerID {
		return nil, notFoundErr("service not found for this provider")
	}
	return listing, nil
}
