package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const (
	maxListedBookings = 10

	textNotLinked = "🔗 Аккаунт не привязан.\n\nПолучите токен в приложении и отправьте:\n<code>/link ТОКЕН</code>"
	textError     = "❌ Произошла ошибка. Попробуйте позже."
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.start(ctx, b, update)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.help(ctx, b, update)
}

// HandleLink обрабатывает команду /link ТОКЕН
func (h *Handlers) HandleLink(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.link(ctx, b, update)
}

// HandleMyBookings обрабатывает команду /mybookings
func (h *Handlers) HandleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.myBookings(ctx, b, update)
}

func (h *Handlers) start(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.linkedUser(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, s, chatID, textError, nil)
		return
	}
	if user == nil {
		h.send(ctx, s, chatID, "👋 Привет!\n\nЗдесь приходят уведомления о бронированиях.\n\n"+textNotLinked, nil)
		return
	}

	h.send(ctx, s, chatID, fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Уведомления о бронированиях приходят в этот чат.\n"+
			"/mybookings - Мои бронирования\n"+
			"/help - Справка",
		displayName(user.DisplayName),
	), nil)
}

func (h *Handlers) help(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/link ТОКЕН - Привязать аккаунт к этому чату\n" +
		"/mybookings - Бронирования и действия по ним\n" +
		"/help - Показать эту справку\n\n" +
		"Кнопки под списком появляются, когда ход за вами."

	h.send(ctx, s, update.Message.Chat.ID, helpText, nil)
}

func (h *Handlers) link(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	raw := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/link"))
	if raw == "" {
		h.send(ctx, s, chatID, textNotLinked, nil)
		return
	}

	userID, err := h.tokens(raw)
	if err != nil {
		h.send(ctx, s, chatID, "❌ Токен недействителен или истёк.", nil)
		return
	}

	if err := h.users.LinkTelegram(ctx, userID, chatID); err != nil {
		h.logger.Error("Failed to link telegram chat",
			zap.String("user_id", userID.String()),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		h.send(ctx, s, chatID, textError, nil)
		return
	}

	h.logger.Info("Telegram chat linked", zap.String("user_id", userID.String()), zap.Int64("chat_id", chatID))
	h.send(ctx, s, chatID, "✅ Аккаунт привязан. Уведомления о бронированиях будут приходить сюда.", nil)
}

func (h *Handlers) myBookings(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := h.linkedUser(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(ctx, s, chatID, textError, nil)
		return
	}
	if user == nil {
		h.send(ctx, s, chatID, textNotLinked, nil)
		return
	}

	bookings, err := h.bookings.ListBookings(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list bookings", zap.String("user_id", user.ID.String()), zap.Error(err))
		h.send(ctx, s, chatID, textError, nil)
		return
	}

	var lines []string
	var rows [][]models.InlineKeyboardButton
	for _, bk := range bookings {
		if bk.Status.IsTerminal() {
			continue
		}
		if len(lines) == maxListedBookings {
			break
		}
		lines = append(lines, bookingLine(bk, user.ID))
		if row := actionRow(bk, user.ID); len(row) > 0 {
			rows = append(rows, row)
		}
	}

	if len(lines) == 0 {
		h.send(ctx, s, chatID, "📭 Активных бронирований нет.", nil)
		return
	}

	var keyboard *models.InlineKeyboardMarkup
	if len(rows) > 0 {
		keyboard = &models.InlineKeyboardMarkup{InlineKeyboard: rows}
	}
	h.send(ctx, s, chatID, "📅 <b>Ваши бронирования</b>\n\n"+strings.Join(lines, "\n"), keyboard)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "друг"
	}
	return name
}
