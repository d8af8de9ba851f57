package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

type fakeUsers map[uuid.UUID]*model.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return f[id], nil
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error { return nil }

type failing struct{ err error }

func (f failing) Notify(context.Context, uuid.UUID, model.NotificationKind, uuid.UUID) error {
	return f.err
}

type counting struct{ calls int }

func (c *counting) Notify(context.Context, uuid.UUID, model.NotificationKind, uuid.UUID) error {
	c.calls++
	return nil
}

func TestTelegramSendsToLinkedChat(t *testing.T) {
	chatID := int64(4242)
	userID := uuid.New()
	jobID := uuid.New()
	sender := &fakeSender{}
	tg := NewTelegram(sender, fakeUsers{userID: {ID: userID, TelegramChatID: &chatID}}, zaptest.NewLogger(t))

	require.NoError(t, tg.Notify(context.Background(), userID, model.NotifyBookingRequested, jobID))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, chatID, sender.sent[0].ChatID)
	assert.Equal(t, models.ParseModeHTML, sender.sent[0].ParseMode)
	assert.Contains(t, sender.sent[0].Text, "Новый запрос")
	assert.Contains(t, sender.sent[0].Text, jobID.String())
}

func TestTelegramSkipsUsersWithoutChat(t *testing.T) {
	userID := uuid.New()
	sender := &fakeSender{}
	tg := NewTelegram(sender, fakeUsers{userID: {ID: userID}}, zap.NewNop())

	require.NoError(t, tg.Notify(context.Background(), userID, model.NotifyStatusChanged, uuid.New()))
	require.NoError(t, tg.Notify(context.Background(), uuid.New(), model.NotifyStatusChanged, uuid.New()))
	assert.Empty(t, sender.sent)
}

func TestTelegramReturnsSendError(t *testing.T) {
	chatID := int64(1)
	userID := uuid.New()
	tg := NewTelegram(&fakeSender{err: errors.New("forbidden")}, fakeUsers{userID: {ID: userID, TelegramChatID: &chatID}}, zap.NewNop())

	err := tg.Notify(context.Background(), userID, model.NotifyStatusChanged, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestAMQPPublisherRoutesByKind(t *testing.T) {
	ch := &fakeChannel{}
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	p := &AMQPPublisher{ch: ch, exchange: "bookings", now: func() time.Time { return at }}
	userID, jobID := uuid.New(), uuid.New()

	require.NoError(t, p.Notify(context.Background(), userID, model.NotifyReviewsPublished, jobID))

	assert.Equal(t, "bookings", ch.exchange)
	assert.Equal(t, "notification.reviews_published", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var ev Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, userID, ev.UserID)
	assert.Equal(t, jobID, ev.JobID)
	assert.Equal(t, model.NotifyReviewsPublished, ev.Kind)
	assert.True(t, at.Equal(ev.SentAt))
}

func TestFanoutDeliversToEveryChannel(t *testing.T) {
	first, last := &counting{}, &counting{}
	boom := errors.New("broker down")
	f := NewFanout(first, failing{err: boom}, nil, last)

	err := f.Notify(context.Background(), uuid.New(), model.NotifyStatusChanged, uuid.New())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, last.calls)
}
