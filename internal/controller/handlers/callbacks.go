package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/booking_engine/internal/lifecycle"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallbackPrefix общий префикс данных кнопок: bk:<действие>:<booking_id>
const CallbackPrefix = "bk:"

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionBook    = "book"
	ActionVerify  = "verify"
)

// declineReason причина отказа, отправленного кнопкой
const declineReason = "declined in Telegram"

var actionTargets = map[string]model.BookingStatus{
	ActionAccept:  model.BookingStatusAccepted,
	ActionDecline: model.BookingStatusCancelled,
	ActionBook:    model.BookingStatusBooked,
	ActionVerify:  model.BookingStatusVerified,
}

var statusLabels = map[model.BookingStatus]string{
	model.BookingStatusPending:         "⏳ ожидает ответа",
	model.BookingStatusAccepted:        "🤝 условия приняты",
	model.BookingStatusDepositSent:     "💸 депозит отправлен",
	model.BookingStatusDepositReceived: "💰 депозит получен",
	model.BookingStatusBooked:          "📌 подтверждено",
	model.BookingStatusInProgress:      "🔧 идёт работа",
	model.BookingStatusCompleted:       "🏁 завершено",
	model.BookingStatusVerified:        "✅ выполнение подтверждено",
	model.BookingStatusCancelled:       "❌ отменено",
	model.BookingStatusExpired:         "⌛ истекло",
}

func callbackData(action string, bookingID uuid.UUID) string {
	return CallbackPrefix + action + ":" + bookingID.String()
}

func parseCallback(data string) (string, uuid.UUID, error) {
	rest, ok := strings.CutPrefix(data, CallbackPrefix)
	if !ok {
		return "", uuid.Nil, fmt.Errorf("unexpected callback %q", data)
	}
	action, rawID, ok := strings.Cut(rest, ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("malformed callback %q", data)
	}
	if _, known := actionTargets[action]; !known {
		return "", uuid.Nil, fmt.Errorf("unknown action %q", action)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("parse booking id: %w", err)
	}
	return action, id, nil
}

// actionRow кнопки, доступные пользователю по бронированию прямо сейчас
func actionRow(b *model.Booking, userID uuid.UUID) []models.InlineKeyboardButton {
	day := b.JobDate.Format("02.01")
	button := func(label, action string) models.InlineKeyboardButton {
		return models.InlineKeyboardButton{Text: label + " " + day, CallbackData: callbackData(action, b.ID)}
	}

	role := model.RoleOf(b, userID)
	switch b.Status {
	case model.BookingStatusPending:
		if lifecycle.IsTurn(b, userID) {
			return []models.InlineKeyboardButton{button("✅ Принять", ActionAccept), button("❌ Отклонить", ActionDecline)}
		}
	case model.BookingStatusAccepted:
		if role == model.RolePerformer {
			return []models.InlineKeyboardButton{button("📌 Подтвердить", ActionBook)}
		}
	case model.BookingStatusCompleted:
		confirmed := (role == model.RoleCustomer && b.ConfirmedBySeekerAt != nil) ||
			(role == model.RolePerformer && b.ConfirmedByProviderAt != nil)
		if !confirmed {
			return []models.InlineKeyboardButton{button("✔️ Работа выполнена", ActionVerify)}
		}
	}
	return nil
}

func bookingLine(b *model.Booking, userID uuid.UUID) string {
	role := "заказ"
	if model.RoleOf(b, userID) == model.RolePerformer {
		role = "исполнение"
	}
	return fmt.Sprintf("• %s %s, %d мин (%s): %s, %s",
		b.JobDate.Format("02.01"),
		html.EscapeString(b.StartTime),
		b.DurationMinutes,
		role,
		formatMoney(b.Total()),
		statusLabels[b.Status],
	)
}

func formatMoney(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// HandleCallbackQuery обрабатывает нажатия на кнопки действий
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.callback(ctx, b, update)
}

func (h *Handlers) callback(ctx context.Context, s Sender, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	h.logger.Info("Routing callback",
		zap.String("data", cb.Data),
		zap.Int64("user_id", cb.From.ID))

	action, bookingID, err := parseCallback(cb.Data)
	if err != nil {
		h.logger.Warn("Bad callback data", zap.Error(err))
		h.answer(ctx, s, cb.ID, "❌ Неизвестное действие", true)
		return
	}

	chatID := cb.From.ID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}
	user, err := h.linkedUser(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.answer(ctx, s, cb.ID, textError, true)
		return
	}
	if user == nil {
		h.answer(ctx, s, cb.ID, "🔗 Сначала привяжите аккаунт командой /link", true)
		return
	}

	reason := ""
	if action == ActionDecline {
		reason = declineReason
	}
	updated, err := h.bookings.RequestTransition(ctx, bookingID, user.ID, actionTargets[action], reason)
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) {
			h.answer(ctx, s, cb.ID, "❌ "+svcErr.Reason, true)
			return
		}
		h.logger.Error("Failed to apply booking action",
			zap.String("booking_id", bookingID.String()),
			zap.String("action", action),
			zap.Error(err))
		h.answer(ctx, s, cb.ID, textError, true)
		return
	}

	h.answer(ctx, s, cb.ID, "Готово: "+statusLabels[updated.Status], false)
}
