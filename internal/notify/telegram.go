package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageSender часть *bot.Bot, нужная для отправки
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup откуда брать чат пользователя
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

var telegramTexts = map[model.NotificationKind]string{
	model.NotifyBookingRequested:  "📩 <b>Новый запрос на бронирование</b>\n\nОткройте заявку, чтобы принять или отклонить её.",
	model.NotifyStatusChanged:     "🔔 <b>Статус бронирования изменился</b>",
	model.NotifyQuoteAdjusted:     "💰 <b>Исполнитель изменил стоимость</b>\n\nПодтвердите новую цену, чтобы продолжить.",
	model.NotifyReviewWindowOpen:  "⭐️ <b>Работа завершена</b>\n\nОставьте отзыв в течение 10 дней.",
	model.NotifyReviewReceived:    "✍️ <b>Вам оставили отзыв</b>\n\nНапишите свой, чтобы увидеть его.",
	model.NotifyReviewsPublished:  "👀 <b>Отзывы опубликованы</b>\n\nТеперь вы видите отзывы друг друга.",
	model.NotifyReviewAutoPublish: "📢 <b>Отзыв о вас опубликован</b>\n\nСрок для ответного отзыва истёк.",
}

// Telegram доставляет уведомления в чат пользователя через бота
type Telegram struct {
	sender MessageSender
	users  UserLookup
	logger *zap.Logger
}

func NewTelegram(sender MessageSender, users UserLookup, logger *zap.Logger) *Telegram {
	return &Telegram{sender: sender, users: users, logger: logger}
}

func (t *Telegram) Notify(ctx context.Context, userID uuid.UUID, kind model.NotificationKind, jobID uuid.UUID) error {
	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.TelegramChatID == nil {
		// Пользователь не привязал Telegram
		t.logger.Debug("Skipping telegram notification",
			zap.String("user_id", userID.String()),
			zap.String("kind", string(kind)),
		)
		return nil
	}

	_, err = t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramChatID,
		Text:      telegramText(kind, jobID),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func telegramText(kind model.NotificationKind, jobID uuid.UUID) string {
	text, ok := telegramTexts[kind]
	if !ok {
		text = "🔔 <b>Обновление по бронированию</b>"
	}
	return fmt.Sprintf("%s\n\n<code>%s</code>", text, jobID)
}
