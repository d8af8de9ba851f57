package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minRating        = 1
	maxRating        = 5
	maxCommentLength = 2000
	day              = 24 * time.Hour
)

// Критерии оценки зависят от того, кто пишет отзыв
var subRatingKeys = map[model.Role]map[string]struct{}{
	model.RoleCustomer: {
		"quality":       {},
		"punctuality":   {},
		"communication": {},
		"value":         {},
	},
	model.RolePerformer: {
		"communication": {},
		"punctuality":   {},
		"clarity":       {},
	},
}

// EligibilityCode почему отзыв сейчас нельзя оставить
type EligibilityCode string

const (
	EligibilityOK           EligibilityCode = ""
	EligibilityNotCompleted EligibilityCode = "not_completed"
	EligibilityWindowClosed EligibilityCode = "window_closed"
	EligibilityPublished    EligibilityCode = "published"
)

// Eligibility может ли пользователь сейчас оставить или изменить отзыв
type Eligibility struct {
	Allowed       bool            `json:"allowed"`
	Code          EligibilityCode `json:"code,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	DaysRemaining int             `json:"days_remaining"`
	HasReviewed   bool            `json:"has_reviewed"`
	IsPublished   bool            `json:"is_published"`
}

// CheckEligibility чистое правило допуска к отзыву. own отзыв пользователя, если он уже есть.
func CheckEligibility(b *model.Booking, own *model.Review, now time.Time) Eligibility {
	var e Eligibility
	if own != nil {
		e.HasReviewed = true
		e.IsPublished = own.IsPublished
	}

	if b.Status != model.BookingStatusCompleted && b.Status != model.BookingStatusVerified {
		e.Code = EligibilityNotCompleted
		e.Reason = "reviews open once the job is completed"
		return e
	}

	// Окно закрывается ровно через 10 суток после начала работы,
	// до того как публикация по сроку может раскрыть отзывы
	window := model.ReviewWindowDays * day
	elapsed := max(0, now.Sub(b.JobDate))
	if elapsed > window {
		e.Code = EligibilityWindowClosed
		e.Reason = fmt.Sprintf("the %d-day review window has closed", model.ReviewWindowDays)
		return e
	}
	e.DaysRemaining = int((window - elapsed + day - 1) / day)

	if own != nil && own.IsPublished {
		e.Code = EligibilityPublished
		e.Reason = "published reviews can no longer be edited"
		return e
	}

	e.Allowed = true
	return e
}

// ReviewPayload содержимое отзыва
type ReviewPayload struct {
	Rating     int            `json:"rating"`
	Comment    string         `json:"comment"`
	SubRatings map[string]int `json:"sub_ratings"`
}

func (p ReviewPayload) validate(role model.Role) error {
	if p.Rating < minRating || p.Rating > maxRating {
		return validationErr("rating must be between %d and %d", minRating, maxRating)
	}
	if len(p.Comment) > maxCommentLength {
		return validationErr("comment must be at most %d characters", maxCommentLength)
	}
	allowed := subRatingKeys[role]
	for k, v := range p.SubRatings {
		if _, ok := allowed[k]; !ok {
			return validationErr("unknown rating criterion %q", k)
		}
		if v < minRating || v > maxRating {
			return validationErr("%s rating must be between %d and %d", k, minRating, maxRating)
		}
	}
	return nil
}

type ReviewService struct {
	bookings BookingStore
	reviews  ReviewStore
	events   *Dispatcher
	adv      *advancer
	logger   *zap.Logger
	now      func() time.Time
}

func NewReviewService(bookings BookingStore, reviews ReviewStore, events *Dispatcher, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		bookings: bookings,
		reviews:  reviews,
		events:   events,
		adv:      &advancer{bookings: bookings, events: events, logger: logger},
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени
func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	s.now = now
	return s
}

// Eligibility допуск пользователя к отзыву по работе
func (s *ReviewService) Eligibility(ctx context.Context, jobID, userID uuid.UUID) (*Eligibility, error) {
	b, err := s.job(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	own, err := s.reviews.Get(ctx, jobID, userID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	e := CheckEligibility(b, own, s.now())
	return &e, nil
}

// Submit сохраняет отзыв. Если вторая сторона уже написала свой, оба
// публикуются одновременно; иначе вторая сторона получает только тизер.
func (s *ReviewService) Submit(ctx context.Context, jobID, reviewerID uuid.UUID, payload ReviewPayload) (*model.Review, error) {
	if jobID == uuid.Nil || reviewerID == uuid.Nil {
		return nil, validationErr("job and reviewer are required")
	}
	payload.Comment = strings.TrimSpace(payload.Comment)

	b, err := s.job(ctx, jobID, reviewerID)
	if err != nil {
		return nil, err
	}
	role := model.RoleOf(b, reviewerID)
	if err := payload.validate(role); err != nil {
		return nil, err
	}

	own, err := s.reviews.Get(ctx, jobID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	now := s.now()
	if e := CheckEligibility(b, own, now); !e.Allowed {
		return nil, eligibilityErr(e)
	}

	review := &model.Review{
		ID:           uuid.New(),
		JobID:        jobID,
		ReviewerID:   reviewerID,
		RevieweeID:   b.Counterpart(reviewerID),
		ReviewerRole: role,
		Rating:       payload.Rating,
		Comment:      payload.Comment,
		SubRatings:   payload.SubRatings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if own != nil {
		review.ID = own.ID
		review.CreatedAt = own.CreatedAt
	}

	revealed, err := s.reviews.UpsertAndReveal(ctx, review, now)
	if err != nil {
		if errors.Is(err, repository.ErrReviewLocked) {
			return nil, invalidTransitionErr("published reviews can no longer be edited")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, staleErr("the job no longer exists")
		}
		return nil, fmt.Errorf("save review: %w", err)
	}

	stored, err := s.reviews.Get(ctx, jobID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if stored == nil {
		return nil, staleErr("the review disappeared while saving")
	}

	s.logger.Info("Review submitted",
		zap.String("job_id", jobID.String()),
		zap.String("reviewer_id", reviewerID.String()),
		zap.String("role", string(role)),
		zap.Int("rating", stored.Rating),
		zap.Bool("revealed", revealed),
	)

	if revealed {
		for _, userID := range b.Participants() {
			s.events.Notify(userID, model.NotifyReviewsPublished, jobID)
			s.events.Broadcast(userID, model.EventReviewsVisible, map[string]any{"job_id": jobID})
		}
	} else if own == nil {
		s.events.Notify(review.RevieweeID, model.NotifyReviewReceived, jobID)
	}

	return stored, nil
}

// ListVisible опубликованные отзывы работы и собственный отзыв зрителя
func (s *ReviewService) ListVisible(ctx context.Context, jobID, viewerID uuid.UUID) ([]*model.Review, error) {
	if _, err := s.job(ctx, jobID, viewerID); err != nil {
		return nil, err
	}
	all, err := s.reviews.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]*model.Review, 0, len(all))
	for _, r := range all {
		if r.IsPublished || r.ReviewerID == viewerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// PublishExpired принудительно публикует отзывы работ, окно которых истекло,
// даже если вторая сторона так ничего и не написала
func (s *ReviewService) PublishExpired(ctx context.Context) (int, error) {
	now := s.now()
	published, err := s.reviews.PublishExpired(ctx, now.AddDate(0, 0, -model.ReviewWindowDays), now)
	if err != nil {
		return 0, fmt.Errorf("publish expired reviews: %w", err)
	}

	for _, r := range published {
		s.events.Notify(r.RevieweeID, model.NotifyReviewAutoPublish, r.JobID)
		s.events.Broadcast(r.RevieweeID, model.EventReviewsVisible, map[string]any{"job_id": r.JobID})
		s.events.Broadcast(r.ReviewerID, model.EventReviewsVisible, map[string]any{"job_id": r.JobID})
	}

	s.logger.Info("Review publish sweep finished", zap.Int("published", len(published)))
	return len(published), nil
}

func (s *ReviewService) job(ctx context.Context, jobID, userID uuid.UUID) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, notFoundErr("job not found")
	}
	if !b.IsParticipant(userID) {
		return nil, unauthorizedErr("you are not a participant of this job")
	}
	current, err := s.adv.advance(ctx, b, s.now())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFoundErr("job not found")
	}
	return current, nil
}

func eligibilityErr(e Eligibility) error {
	if e.Code == EligibilityWindowClosed {
		return expiredErr(e.Reason)
	}
	return invalidTransitionErr(e.Reason)
}
