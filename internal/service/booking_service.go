package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/availability"
	"github.com/Freeeeeet/booking_engine/internal/lifecycle"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxDurationMinutes = 24 * 60
	maxLabelLength     = 120
	defaultListLimit   = 100
)

type BookingService struct {
	bookings     BookingStore
	listings     ListingStore
	availability AvailabilityStore
	events       *Dispatcher
	adv          *advancer
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewBookingService(
	bookings BookingStore,
	listings ListingStore,
	availability AvailabilityStore,
	events *Dispatcher,
	loc *time.Location,
	logger *zap.Logger,
) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		bookings:     bookings,
		listings:     listings,
		availability: availability,
		events:       events,
		adv:          &advancer{bookings: bookings, events: events, logger: logger},
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock подменяет источник времени
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBookingRequest запрос заказчика на бронирование дня исполнителя
type CreateBookingRequest struct {
	CustomerID      uuid.UUID         `json:"customer_id"`
	PerformerID     uuid.UUID         `json:"performer_id"`
	ServiceID       uuid.UUID         `json:"service_id"`
	JobDate         time.Time         `json:"job_date"`
	StartTime       string            `json:"start_time"`
	DurationMinutes int               `json:"duration"`
	PriceBreakdown  []model.PriceLine `json:"price_breakdown"`
}

func (r CreateBookingRequest) validate() error {
	if r.CustomerID == uuid.Nil || r.PerformerID == uuid.Nil || r.ServiceID == uuid.Nil {
		return validationErr("customer, provider and service are required")
	}
	if r.CustomerID == r.PerformerID {
		return validationErr("a provider cannot book their own service")
	}
	if r.JobDate.IsZero() {
		return validationErr("job date is required")
	}
	if r.DurationMinutes <= 0 || r.DurationMinutes > maxDurationMinutes {
		return validationErr("duration must be between 1 and %d minutes", maxDurationMinutes)
	}
	return validateBreakdown(r.PriceBreakdown, true)
}

func validateBreakdown(lines []model.PriceLine, allowEmpty bool) error {
	if len(lines) == 0 {
		if allowEmpty {
			return nil
		}
		return validationErr("price breakdown is required")
	}
	var total int64
	for i, line := range lines {
		switch line.Type {
		case model.PriceLineBase, model.PriceLineTravel, model.PriceLineCustom:
			if line.Amount < 0 {
				return validationErr("price line %d: amount must not be negative", i+1)
			}
		case model.PriceLineDiscount:
			if line.Amount > 0 {
				return validationErr("price line %d: discount must not be positive", i+1)
			}
		default:
			return validationErr("price line %d: unknown type %q", i+1, line.Type)
		}
		if len(line.Label) > maxLabelLength {
			return validationErr("price line %d: label is too long", i+1)
		}
		total += line.Amount
	}
	if total < 0 {
		return validationErr("total price must not be negative")
	}
	return nil
}

// CreateBooking создаёт запрос на бронирование в статусе pending.
// День должен быть доступен для заказчика по календарю исполнителя.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if !req.JobDate.After(now) {
		return nil, validationErr("job date must be in the future")
	}

	listing, err := s.listings.GetByID(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil || listing.OwnerID != req.PerformerID {
		return nil, notFoundErr("service not found for this provider")
	}
	if !listing.IsActive {
		return nil, slotConflictErr(ConflictDateClosed)
	}

	slotDate := model.DayOf(req.JobDate, s.loc)
	entries, err := s.availability.ListByProvider(ctx, listing.OwnerID, slotDate, slotDate.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	view := availability.ResolveDay(availability.Input{
		Listing:  listing,
		Entries:  entries,
		ViewerID: req.CustomerID,
		Now:      now,
		Location: s.loc,
	}, slotDate)
	if view.Status == model.AvailabilityBooked {
		return nil, slotConflictErr(ConflictAlreadyBooked)
	}
	if !view.Bookable || view.Price == nil {
		return nil, slotConflictErr(ConflictDateClosed)
	}

	breakdown := req.PriceBreakdown
	if len(breakdown) == 0 {
		breakdown = []model.PriceLine{{
			Type:   model.PriceLineBase,
			Label:  fmt.Sprintf("%d min", req.DurationMinutes),
			Amount: *view.Price * int64(req.DurationMinutes) / 60,
		}}
	}

	startTime := strings.TrimSpace(req.StartTime)
	if startTime == "" {
		startTime = req.JobDate.In(s.loc).Format("15:04")
	}

	customer := req.CustomerID
	booking := &model.Booking{
		ID:              uuid.New(),
		ServiceID:       listing.ID,
		PerformerID:     listing.OwnerID,
		CustomerID:      req.CustomerID,
		JobDate:         req.JobDate,
		SlotDate:        slotDate,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		HourlyRate:      *view.Price,
		PriceBreakdown:  breakdown,
		Status:          model.BookingStatusPending,
		LastActionBy:    &customer,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, slotConflictErr(ConflictAlreadyBooked)
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking requested",
		zap.String("booking_id", booking.ID.String()),
		zap.String("customer_id", booking.CustomerID.String()),
		zap.String("performer_id", booking.PerformerID.String()),
		zap.String("service_id", booking.ServiceID.String()),
		zap.String("slot_date", slotDate.Format(model.DateLayout)),
		zap.Int64("total", booking.Total()),
	)

	s.events.BookingChanged(booking, &customer, model.NotifyBookingRequested)
	return booking, nil
}

// RequestTransition переводит бронирование в целевой статус от имени участника.
// Повтор уже применённого перехода возвращает бронирование без побочных эффектов.
func (s *BookingService) RequestTransition(ctx context.Context, bookingID, actorID uuid.UUID, target model.BookingStatus, reason string) (*model.Booking, error) {
	if bookingID == uuid.Nil || actorID == uuid.Nil {
		return nil, validationErr("booking and actor are required")
	}
	if !target.Valid() {
		return nil, validationErr("unknown status %q", target)
	}
	if rule, ok := lifecycle.RuleFor(target); ok && rule.RequiresReason && strings.TrimSpace(reason) == "" {
		return nil, validationErr("a reason is required")
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		b, err := s.load(ctx, bookingID, actorID)
		if err != nil {
			return nil, err
		}

		actor := lifecycle.ActorFor(b, actorID)
		upd, changed, err := lifecycle.Plan(b, actor, target, reason, s.now())
		if err != nil {
			return nil, fromLifecycle(err)
		}
		if !changed {
			return b, nil
		}

		updated, err := s.bookings.ApplyStatus(ctx, b.ID, upd)
		switch {
		case err == nil:
			s.logger.Info("Booking status changed",
				zap.String("booking_id", updated.ID.String()),
				zap.String("actor_id", actorID.String()),
				zap.String("from", string(upd.From)),
				zap.String("to", string(updated.Status)),
			)
			s.events.BookingChanged(updated, &actorID, model.NotifyStatusChanged)
			return updated, nil
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, slotConflictErr(ConflictAlreadyBooked)
		case errors.Is(err, repository.ErrNotFound):
			return nil, staleErr("the booking no longer exists")
		case errors.Is(err, repository.ErrStatusChanged):
			if updated == nil || !updated.Status.IsActive() {
				return nil, staleErr("the booking was cancelled in the meantime")
			}
			// Статус сменился параллельно: проверяем переход заново по свежему состоянию
			continue
		default:
			return nil, fmt.Errorf("apply status: %w", err)
		}
	}

	return nil, staleErr("the booking is changing too often, reload and try again")
}

// AdjustQuote меняет цену до подтверждения. Любое изменение денег требует
// нового согласия второй стороны, поэтому бронирование возвращается в pending.
func (s *BookingService) AdjustQuote(ctx context.Context, bookingID, actorID uuid.UUID, hourlyRate *int64, breakdown []model.PriceLine) (*model.Booking, error) {
	if bookingID == uuid.Nil || actorID == uuid.Nil {
		return nil, validationErr("booking and actor are required")
	}
	if err := validateBreakdown(breakdown, false); err != nil {
		return nil, err
	}
	if hourlyRate != nil && *hourlyRate < 0 {
		return nil, validationErr("hourly rate must not be negative")
	}

	b, err := s.load(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if actorID != b.PerformerID {
		return nil, unauthorizedErr("only the provider can adjust the price")
	}
	if b.Status != model.BookingStatusPending && b.Status != model.BookingStatusAccepted {
		return nil, invalidTransitionErr("the price can only be changed before the booking is confirmed")
	}

	rate := b.HourlyRate
	if hourlyRate != nil {
		rate = *hourlyRate
	}

	updated, err := s.bookings.UpdateQuote(ctx, b.ID, model.QuoteUpdate{
		From:           b.Status,
		ActorID:        actorID,
		HourlyRate:     rate,
		PriceBreakdown: breakdown,
		At:             s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusChanged) || errors.Is(err, repository.ErrNotFound) {
			return nil, staleErr("the booking changed in the meantime, reload and try again")
		}
		return nil, fmt.Errorf("update quote: %w", err)
	}

	s.logger.Info("Booking quote adjusted",
		zap.String("booking_id", updated.ID.String()),
		zap.Int64("hourly_rate", updated.HourlyRate),
		zap.Int64("total", updated.Total()),
	)

	s.events.BookingChanged(updated, &actorID, model.NotifyQuoteAdjusted)
	return updated, nil
}

// GetBooking возвращает бронирование участнику, применив просроченные переходы
func (s *BookingService) GetBooking(ctx context.Context, bookingID, viewerID uuid.UUID) (*model.Booking, error) {
	return s.load(ctx, bookingID, viewerID)
}

// ListBookings бронирования пользователя в обеих ролях
func (s *BookingService) ListBookings(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	if userID == uuid.Nil {
		return nil, validationErr("user is required")
	}
	bookings, err := s.bookings.ListByParticipant(ctx, userID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	now := s.now()
	out := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		current, err := s.adv.advance(ctx, b, now)
		if err != nil {
			s.logger.Warn("Failed to reconcile booking on read",
				zap.String("booking_id", b.ID.String()),
				zap.Error(err),
			)
			current = b
		}
		if current != nil {
			out = append(out, current)
		}
	}
	return out, nil
}

// load читает бронирование, проверяет участие и лениво применяет сверку по времени
func (s *BookingService) load(ctx context.Context, bookingID, userID uuid.UUID) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, notFoundErr("booking not found")
	}
	if !b.IsParticipant(userID) {
		return nil, unauthorizedErr("you are not a participant of this booking")
	}

	current, err := s.adv.advance(ctx, b, s.now())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFoundErr("booking not found")
	}
	return current, nil
}
