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

const reviewColumns = `
	id, job_id, reviewer_id, reviewee_id, reviewer_role, rating, comment,
	sub_ratings, is_published, published_at, created_at, updated_at`

type ReviewRepository struct {
	*base.Repository
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{Repository: base.NewRepository(pool)}
}

// Get получает отзыв автора по работе
func (r *ReviewRepository) Get(ctx context.Context, jobID, reviewerID uuid.UUID) (*model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE job_id = $1 AND reviewer_id = $2`

	review, err := scanReview(r.QueryRow(ctx, query, jobID, reviewerID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return review, nil
}

// ListByJob все отзывы по работе
func (r *ReviewRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE job_id = $1 ORDER BY created_at`

	rows, err := r.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list reviews by job: %w", err)
	}
	return collectReviews(rows)
}

// UpsertAndReveal сохраняет отзыв и публикует пару, если вторая сторона уже написала свой.
// Строка бронирования блокируется, поэтому одновременные отзывы обеих сторон
// выполняются по очереди и раскрытие происходит ровно один раз.
func (r *ReviewRepository) UpsertAndReveal(ctx context.Context, review *model.Review, at time.Time) (bool, error) {
	var revealed bool

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		var jobID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM bookings WHERE id = $1 FOR UPDATE`, review.JobID).Scan(&jobID)
		if err != nil {
			if base.IsNotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("lock job: %w", err)
		}

		upsert := `
			INSERT INTO reviews (
				id, job_id, reviewer_id, reviewee_id, reviewer_role, rating, comment,
				sub_ratings, is_published, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)
			ON CONFLICT (job_id, reviewer_id) DO UPDATE
			SET rating = EXCLUDED.rating,
			    comment = EXCLUDED.comment,
			    sub_ratings = EXCLUDED.sub_ratings,
			    updated_at = EXCLUDED.updated_at
			WHERE reviews.is_published = false
		`
		tag, err := tx.Exec(ctx, upsert,
			review.ID,
			review.JobID,
			review.ReviewerID,
			review.RevieweeID,
			review.ReviewerRole,
			review.Rating,
			review.Comment,
			review.SubRatings,
			review.CreatedAt,
			at,
		)
		if err != nil {
			return fmt.Errorf("upsert review: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrReviewLocked
		}

		var counterpart bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reviews WHERE job_id = $1 AND reviewer_id <> $2)`,
			review.JobID, review.ReviewerID,
		).Scan(&counterpart)
		if err != nil {
			return fmt.Errorf("check counterpart review: %w", err)
		}
		if !counterpart {
			return nil
		}

		publish := `
			UPDATE reviews
			SET is_published = true, published_at = $2, updated_at = $2
			WHERE job_id = $1 AND is_published = false
		`
		if _, err := tx.Exec(ctx, publish, review.JobID, at); err != nil {
			return fmt.Errorf("publish reviews: %w", err)
		}
		revealed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReviewLocked) || errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("save review: %w", err)
	}

	return revealed, nil
}

// PublishExpired публикует неопубликованные отзывы работ, закончившихся раньше endedBefore
func (r *ReviewRepository) PublishExpired(ctx context.Context, endedBefore, at time.Time) ([]*model.Review, error) {
	query := `
		UPDATE reviews AS rv
		SET is_published = true, published_at = $2, updated_at = $2
		FROM bookings AS b
		WHERE rv.job_id = b.id
		  AND rv.is_published = false
		  AND b.job_date + make_interval(mins => b.duration_minutes) < $1
		RETURNING rv.id, rv.job_id, rv.reviewer_id, rv.reviewee_id, rv.reviewer_role, rv.rating, rv.comment,
		          rv.sub_ratings, rv.is_published, rv.published_at, rv.created_at, rv.updated_at
	`

	rows, err := r.Query(ctx, query, endedBefore, at)
	if err != nil {
		return nil, fmt.Errorf("publish expired reviews: %w", err)
	}
	return collectReviews(rows)
}

func scanReview(row pgx.Row) (*model.Review, error) {
	var review model.Review
	err := row.Scan(
		&review.ID,
		&review.JobID,
		&review.ReviewerID,
		&review.RevieweeID,
		&review.ReviewerRole,
		&review.Rating,
		&review.Comment,
		&review.SubRatings,
		&review.IsPublished,
		&review.PublishedAt,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func collectReviews(rows pgx.Rows) ([]*model.Review, error) {
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}
