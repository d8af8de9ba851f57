package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// bookingsActiveSlotIndex частичный уникальный индекс: одно активное бронирование
// на день исполнителя по услуге
const bookingsActiveSlotIndex = "bookings_active_slot_idx"

const bookingColumns = `
	id, service_id, performer_id, customer_id,
	job_date, slot_date, start_time, duration_minutes,
	hourly_rate, price_breakdown, status, last_action_by,
	confirmed_by_provider_at, confirmed_by_seeker_at,
	cancellation_reason, cancelled_at, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, service_id, performer_id, customer_id,
			job_date, slot_date, start_time, duration_minutes,
			hourly_rate, price_breakdown, status, last_action_by,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.Pool().Exec(
		ctx, query,
		b.ID,
		b.ServiceID,
		b.PerformerID,
		b.CustomerID,
		b.JobDate,
		b.SlotDate,
		b.StartTime,
		b.DurationMinutes,
		b.HourlyRate,
		b.PriceBreakdown,
		b.Status,
		b.LastActionBy,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err, bookingsActiveSlotIndex) {
			return ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return b, nil
}

// ApplyStatus меняет статус, только если он всё ещё равен upd.From.
// Строка блокируется до конца транзакции, поэтому сверка и запросы
// пользователей по одному бронированию выполняются строго по очереди.
func (r *BookingRepository) ApplyStatus(ctx context.Context, id uuid.UUID, upd model.StatusUpdate) (*model.Booking, error) {
	var out *model.Booking

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		current, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != upd.From {
			out = current
			return ErrStatusChanged
		}

		next := current.Clone()
		upd.Apply(next)

		if upd.ClaimSlot {
			if err := claimSlot(ctx, tx, next, upd.At); err != nil {
				return err
			}
		}
		if upd.ReleaseSlot {
			if err := releaseSlot(ctx, tx, next.ID, upd.At); err != nil {
				return err
			}
		}

		query := `
			UPDATE bookings
			SET status = $2,
			    last_action_by = $3,
			    confirmed_by_provider_at = $4,
			    confirmed_by_seeker_at = $5,
			    cancellation_reason = $6,
			    cancelled_at = $7,
			    updated_at = $8
			WHERE id = $1 AND status = $9
		`
		tag, err := tx.Exec(
			ctx, query,
			next.ID,
			next.Status,
			next.LastActionBy,
			next.ConfirmedByProviderAt,
			next.ConfirmedBySeekerAt,
			next.CancellationReason,
			next.CancelledAt,
			next.UpdatedAt,
			upd.From,
		)
		if err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			out = current
			return ErrStatusChanged
		}

		out = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return out, err
		}
		return nil, err
	}

	return out, nil
}

// UpdateQuote записывает новую цену и возвращает бронирование в pending
func (r *BookingRepository) UpdateQuote(ctx context.Context, id uuid.UUID, upd model.QuoteUpdate) (*model.Booking, error) {
	var out *model.Booking

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		current, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != upd.From {
			out = current
			return ErrStatusChanged
		}

		query := `
			UPDATE bookings
			SET hourly_rate = $2,
			    price_breakdown = $3,
			    status = $4,
			    last_action_by = $5,
			    updated_at = $6
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, query,
			id,
			upd.HourlyRate,
			upd.PriceBreakdown,
			model.BookingStatusPending,
			upd.ActorID,
			upd.At,
		)
		if err != nil {
			return fmt.Errorf("update booking quote: %w", err)
		}

		next := current.Clone()
		actor := upd.ActorID
		next.HourlyRate = upd.HourlyRate
		next.PriceBreakdown = append([]model.PriceLine(nil), upd.PriceBreakdown...)
		next.Status = model.BookingStatusPending
		next.LastActionBy = &actor
		next.UpdatedAt = upd.At
		out = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return out, err
		}
		return nil, err
	}

	return out, nil
}

// ListDue бронирования, которым к моменту now пора сменить статус по времени.
// Страницы идут по ключу (job_date, id), поэтому строки, оставшиеся due после
// неудачной попытки, не мешают дойти до следующих.
func (r *BookingRepository) ListDue(ctx context.Context, now time.Time, after *model.DueCursor, limit int) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE ((status = 'pending' AND job_date < $1)
		   OR (status IN ('accepted', 'deposit_sent', 'deposit_received', 'booked') AND job_date <= $1)
		   OR (status = 'in_progress' AND job_date + make_interval(mins => duration_minutes) <= $1))
		  AND ($2::timestamptz IS NULL OR (job_date, id) > ($2, $3::uuid))
		ORDER BY job_date, id
		LIMIT $4
	`

	var (
		afterDate *time.Time
		afterID   *uuid.UUID
	)
	if after != nil {
		afterDate, afterID = &after.JobDate, &after.ID
	}

	rows, err := r.Query(ctx, query, now, afterDate, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list due bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListByParticipant бронирования, где пользователь заказчик или исполнитель
func (r *BookingRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE customer_id = $1 OR performer_id = $1
		ORDER BY job_date DESC
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings by participant: %w", err)
	}
	return collectBookings(rows)
}

func lockBooking(ctx context.Context, q base.Querier, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	b, err := scanBooking(q.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return b, nil
}

// claimSlot занимает запись доступности. День исполнителя общий для всех его
// услуг: захваты одного дня сериализуются advisory-блокировкой до конца
// транзакции, и день, занятый другой услугой, не захватывается.
// Условие в DO UPDATE не даёт перезаписать день, уже занятый другим бронированием.
func claimSlot(ctx context.Context, q base.Querier, b *model.Booking, at time.Time) error {
	slot := b.Slot()

	lockKey := slot.ProviderID.String() + ":" + slot.Date.Format(model.DateLayout)
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("lock provider day: %w", err)
	}

	var busy bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM availability_entries
			WHERE provider_id = $1
			  AND date = $2
			  AND service_id <> $3
			  AND status = 'booked'
		)`,
		slot.ProviderID, slot.Date, slot.ServiceID,
	).Scan(&busy)
	if err != nil {
		return fmt.Errorf("check provider day: %w", err)
	}
	if busy {
		return ErrSlotTaken
	}

	query := `
		INSERT INTO availability_entries (provider_id, service_id, date, is_available, status, booking_id, updated_at)
		VALUES ($1, $2, $3, false, 'booked', $4, $5)
		ON CONFLICT (provider_id, service_id, date) DO UPDATE
		SET is_available = false,
		    status = 'booked',
		    booking_id = EXCLUDED.booking_id,
		    updated_at = EXCLUDED.updated_at
		WHERE availability_entries.status <> 'booked'
		   OR availability_entries.booking_id = EXCLUDED.booking_id
	`

	tag, err := q.Exec(ctx, query, slot.ProviderID, slot.ServiceID, slot.Date, b.ID, at)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

// releaseSlot возвращает день в доступные, сохраняя индивидуальную цену
func releaseSlot(ctx context.Context, q base.Querier, bookingID uuid.UUID, at time.Time) error {
	query := `
		UPDATE availability_entries
		SET is_available = true,
		    status = 'available',
		    booking_id = NULL,
		    updated_at = $2
		WHERE booking_id = $1
	`

	if _, err := q.Exec(ctx, query, bookingID, at); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		reason *string
	)
	err := row.Scan(
		&b.ID,
		&b.ServiceID,
		&b.PerformerID,
		&b.CustomerID,
		&b.JobDate,
		&b.SlotDate,
		&b.StartTime,
		&b.DurationMinutes,
		&b.HourlyRate,
		&b.PriceBreakdown,
		&b.Status,
		&b.LastActionBy,
		&b.ConfirmedByProviderAt,
		&b.ConfirmedBySeekerAt,
		&reason,
		&b.CancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		b.CancellationReason = *reason
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}
