package handlers

import (
	"context"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserDirectory пользователи и привязка их Telegram-чатов
type UserDirectory interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	LinkTelegram(ctx context.Context, userID uuid.UUID, chatID int64) error
}

// BookingActions операции с бронированиями, доступные из бота
type BookingActions interface {
	ListBookings(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error)
	RequestTransition(ctx context.Context, bookingID, actorID uuid.UUID, target model.BookingStatus, reason string) (*model.Booking, error)
}

// TokenParser проверяет токен API и возвращает его владельца
type TokenParser func(raw string) (uuid.UUID, error)

// Sender часть Bot API, которой пользуются обработчики
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type Handlers struct {
	users    UserDirectory
	bookings BookingActions
	tokens   TokenParser
	logger   *zap.Logger
}

func NewHandlers(users UserDirectory, bookings BookingActions, tokens TokenParser, logger *zap.Logger) *Handlers {
	return &Handlers{
		users:    users,
		bookings: bookings,
		tokens:   tokens,
		logger:   logger,
	}
}

func (h *Handlers) send(ctx context.Context, s Sender, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handlers) answer(ctx context.Context, s Sender, callbackID, text string, alert bool) {
	if _, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

// linkedUser пользователь, привязавший чат; nil если привязки нет
func (h *Handlers) linkedUser(ctx context.Context, chatID int64) (*model.User, error) {
	return h.users.GetByTelegramChatID(ctx, chatID)
}
