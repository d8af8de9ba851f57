package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: base.NewRepository(pool)}
}

// ListByProvider получает записи исполнителя по всем его услугам в диапазоне [from, to)
func (r *AvailabilityRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.AvailabilityEntry, error) {
	query := `
		SELECT provider_id, service_id, date, is_available, status, custom_price, booking_id, updated_at
		FROM availability_entries
		WHERE provider_id = $1
		  AND date >= $2
		  AND date < $3
		ORDER BY date, service_id
	`

	rows, err := r.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability by provider: %w", err)
	}
	defer rows.Close()

	var entries []model.AvailabilityEntry
	for rows.Next() {
		var e model.AvailabilityEntry
		err := rows.Scan(
			&e.ProviderID,
			&e.ServiceID,
			&e.Date,
			&e.IsAvailable,
			&e.Status,
			&e.CustomPrice,
			&e.BookingID,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan availability entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability entries: %w", err)
	}

	return entries, nil
}

// BulkUpsert перезаписывает записи одним пакетом. Дни, занятые бронированием,
// не трогаются и возвращаются как пропущенные.
func (r *AvailabilityRepository) BulkUpsert(ctx context.Context, entries []model.AvailabilityEntry) ([]time.Time, error) {
	query := `
		INSERT INTO availability_entries (provider_id, service_id, date, is_available, status, custom_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_id, service_id, date) DO UPDATE
		SET is_available = EXCLUDED.is_available,
		    status = EXCLUDED.status,
		    custom_price = EXCLUDED.custom_price,
		    updated_at = EXCLUDED.updated_at
		WHERE availability_entries.status <> 'booked'
	`

	var skipped []time.Time
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(query, e.ProviderID, e.ServiceID, e.Date, e.IsAvailable, e.Status, e.CustomPrice, e.UpdatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for _, e := range entries {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert availability %s: %w", e.Date.Format(model.DateLayout), err)
			}
			if tag.RowsAffected() == 0 {
				skipped = append(skipped, e.Date)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return skipped, nil
}
