package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEligibility(t *testing.T) {
	jobDate := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	completed := &model.Booking{Status: model.BookingStatusCompleted, JobDate: jobDate, DurationMinutes: 60}

	e := CheckEligibility(&model.Booking{Status: model.BookingStatusBooked, JobDate: jobDate}, nil, jobDate)
	assert.False(t, e.Allowed)
	assert.Equal(t, EligibilityNotCompleted, e.Code)

	e = CheckEligibility(completed, nil, jobDate.Add(3*24*time.Hour+time.Hour))
	assert.True(t, e.Allowed)
	assert.Equal(t, 7, e.DaysRemaining)
	assert.False(t, e.HasReviewed)

	e = CheckEligibility(completed, nil, jobDate.AddDate(0, 0, 9).Add(time.Hour))
	assert.True(t, e.Allowed)
	assert.Equal(t, 1, e.DaysRemaining, "a partial day counts as a remaining day")

	e = CheckEligibility(completed, nil, jobDate.AddDate(0, 0, 10))
	assert.True(t, e.Allowed, "the window still includes its last instant")
	assert.Zero(t, e.DaysRemaining)

	for _, late := range []time.Duration{time.Second, 2 * time.Hour, 24 * time.Hour} {
		e = CheckEligibility(completed, nil, jobDate.AddDate(0, 0, 10).Add(late))
		assert.Falsef(t, e.Allowed, "%s after ten days", late)
		assert.Equal(t, EligibilityWindowClosed, e.Code)
	}

	published := &model.Review{IsPublished: true}
	e = CheckEligibility(completed, published, jobDate.Add(time.Hour))
	assert.False(t, e.Allowed)
	assert.Equal(t, EligibilityPublished, e.Code)
	assert.True(t, e.HasReviewed)
	assert.True(t, e.IsPublished)

	verified := *completed
	verified.Status = model.BookingStatusVerified
	assert.True(t, CheckEligibility(&verified, &model.Review{}, jobDate.Add(time.Hour)).Allowed)
}

func TestReviewsStayHiddenUntilBothSidesSubmit(t *testing.T) {
	for _, customerFirst := range []bool{true, false} {
		name := "performer first"
		if customerFirst {
			name = "customer first"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			b := env.completed(t, testNow.Add(24*time.Hour), 60)
			env.settle()
			env.notes.reset()

			first, second := env.customer, env.performer
			if !customerFirst {
				first, second = second, first
			}

			r, err := env.reviews.Submit(ctx, b.ID, first, ReviewPayload{Rating: 4, Comment: " fine "})
			require.NoError(t, err)
			assert.False(t, r.IsPublished)
			assert.Equal(t, "fine", r.Comment)
			assert.Equal(t, second, r.RevieweeID)

			visible, err := env.reviews.ListVisible(ctx, b.ID, second)
			require.NoError(t, err)
			assert.Empty(t, visible, "the other side cannot read an unpublished review")

			visible, err = env.reviews.ListVisible(ctx, b.ID, first)
			require.NoError(t, err)
			assert.Len(t, visible, 1, "the author sees their own draft")

			env.settle()
			assert.Equal(t, 1, env.notes.count(second, model.NotifyReviewReceived))

			_, err = env.reviews.Submit(ctx, b.ID, second, ReviewPayload{Rating: 5})
			require.NoError(t, err)

			for _, viewer := range []uuid.UUID{first, second} {
				visible, err = env.reviews.ListVisible(ctx, b.ID, viewer)
				require.NoError(t, err)
				require.Len(t, visible, 2)
				for _, v := range visible {
					assert.True(t, v.IsPublished)
					require.NotNil(t, v.PublishedAt)
					assert.Equal(t, *visible[0].PublishedAt, *v.PublishedAt, "both reviews are revealed together")
				}
			}

			env.settle()
			assert.Equal(t, 1, env.notes.count(first, model.NotifyReviewsPublished))
			assert.Equal(t, 1, env.notes.count(second, model.NotifyReviewsPublished))
			assert.Zero(t, env.notes.count(first, model.NotifyReviewReceived), "no teaser once reviews are revealed")
		})
	}
}

func TestReviewEditableUntilPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.completed(t, testNow.Add(24*time.Hour), 60)

	first, err := env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 2})
	require.NoError(t, err)
	env.settle()
	env.notes.reset()

	edited, err := env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 3, SubRatings: map[string]int{"quality": 4}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, edited.ID)
	assert.Equal(t, 3, edited.Rating)
	assert.Equal(t, map[string]int{"quality": 4}, edited.SubRatings)

	env.settle()
	assert.Zero(t, env.notes.count(env.performer, model.NotifyReviewReceived), "edits do not repeat the teaser")

	_, err = env.reviews.Submit(ctx, b.ID, env.performer, ReviewPayload{Rating: 5})
	require.NoError(t, err)

	_, err = env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	e, err := env.reviews.Eligibility(ctx, b.ID, env.customer)
	require.NoError(t, err)
	assert.False(t, e.Allowed)
	assert.True(t, e.IsPublished)
}

func TestReviewRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.booked(t, testNow.Add(24*time.Hour), 60)
	_, err := env.reviews.Submit(ctx, open.ID, env.customer, ReviewPayload{Rating: 5})
	assert.ErrorIs(t, err, ErrInvalidTransition, "job not completed yet")

	b := env.completed(t, testNow.Add(48*time.Hour), 60)

	_, err = env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 6})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 5, SubRatings: map[string]int{"clarity": 5}})
	assert.ErrorIs(t, err, ErrValidation, "clarity is rated by providers only")
	_, err = env.reviews.Submit(ctx, b.ID, env.performer, ReviewPayload{Rating: 5, SubRatings: map[string]int{"clarity": 0}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.reviews.Submit(ctx, b.ID, uuid.New(), ReviewPayload{Rating: 5})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.reviews.Submit(ctx, uuid.New(), env.customer, ReviewPayload{Rating: 5})
	assert.ErrorIs(t, err, ErrNotFound)

	env.clock.Set(b.JobDate.AddDate(0, 0, 11))
	_, err = env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 5})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestPublishExpiredRevealsOneSidedReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.completed(t, testNow.Add(24*time.Hour), 60)

	_, err := env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 4})
	require.NoError(t, err)

	env.clock.Set(b.EndsAt().AddDate(0, 0, 9))
	n, err := env.reviews.PublishExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "the window is still open")

	env.settle()
	env.notes.reset()

	env.clock.Set(b.EndsAt().AddDate(0, 0, 10).Add(time.Minute))
	n, err = env.reviews.PublishExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	visible, err := env.reviews.ListVisible(ctx, b.ID, env.performer)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.True(t, visible[0].IsPublished)

	env.settle()
	assert.Equal(t, 1, env.notes.count(env.performer, model.NotifyReviewAutoPublish))

	n, err = env.reviews.PublishExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForcedPublicationNeverPrecedesWindowClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.completed(t, testNow.Add(24*time.Hour), 60)

	_, err := env.reviews.Submit(ctx, b.ID, env.customer, ReviewPayload{Rating: 1, Comment: "late"})
	require.NoError(t, err)

	// Работа длилась час: публикация по сроку срабатывает позже закрытия окна
	env.clock.Set(b.JobDate.AddDate(0, 0, 10).Add(2 * time.Hour))
	n, err := env.reviews.PublishExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	visible, err := env.reviews.ListVisible(ctx, b.ID, env.performer)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	e, err := env.reviews.Eligibility(ctx, b.ID, env.performer)
	require.NoError(t, err)
	assert.False(t, e.Allowed)
	assert.Equal(t, EligibilityWindowClosed, e.Code)

	_, err = env.reviews.Submit(ctx, b.ID, env.performer, ReviewPayload{Rating: 1})
	assert.ErrorIs(t, err, ErrExpired, "a review cannot be answered after reading the other side")
}
