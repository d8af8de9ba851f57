package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ListingRepository struct {
	*base.Repository
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает услугу по ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	query := `
		SELECT id, owner_id, title, base_hourly_rate, availability_window_days, is_active, created_at
		FROM listings
		WHERE id = $1
	`

	var l model.Listing
	err := r.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.OwnerID,
		&l.Title,
		&l.BaseHourlyRate,
		&l.AvailabilityWindowDays,
		&l.IsActive,
		&l.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}

	return &l, nil
}
