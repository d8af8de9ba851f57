// Package lifecycle содержит таблицу переходов бронирования и правила
// продвижения статусов по времени. Пакет не обращается к хранилищу.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrReasonRequired    = errors.New("reason required")
)

// RejectError отказ таблицы переходов с причиной для пользователя
type RejectError struct {
	Kind   error
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

func (e *RejectError) Unwrap() error { return e.Kind }

func reject(kind error, reason string) error {
	return &RejectError{Kind: kind, Reason: reason}
}

// Actors набор ролей, которым разрешён переход
type Actors uint8

const (
	ActorCustomer Actors = 1 << iota
	ActorPerformer
	// ActorTurn любая сторона, но только когда ход за ней (последнее действие было не её)
	ActorTurn
	ActorSystem
)

// Rule правило перехода в целевой статус
type Rule struct {
	From           []model.BookingStatus
	Actors         Actors
	Reason         string // почему переход из текущего статуса невозможен
	ActorReason    string // почему этой стороне переход запрещён
	RequiresReason bool
	// Guard дополнительное ограничение для конкретной роли; пустая строка - разрешено
	Guard func(b *model.Booking, role model.Role) string
}

var startable = []model.BookingStatus{
	model.BookingStatusAccepted,
	model.BookingStatusDepositSent,
	model.BookingStatusDepositReceived,
	model.BookingStatusBooked,
}

// rules таблица переходов по целевому статусу. pending в ней нет:
// в pending бронирование попадает только при создании и при изменении цены.
var rules = map[model.BookingStatus]Rule{
	model.BookingStatusAccepted: {
		From:        []model.BookingStatus{model.BookingStatusPending},
		Actors:      ActorTurn,
		Reason:      "only a pending request can be accepted",
		ActorReason: "waiting for the other party to respond",
	},
	model.BookingStatusDepositSent: {
		From:        []model.BookingStatus{model.BookingStatusAccepted},
		Actors:      ActorCustomer,
		Reason:      "a deposit can be marked as sent only after the request is accepted",
		ActorReason: "only the customer can mark the deposit as sent",
	},
	model.BookingStatusDepositReceived: {
		From:        []model.BookingStatus{model.BookingStatusDepositSent},
		Actors:      ActorPerformer,
		Reason:      "the deposit has not been marked as sent yet",
		ActorReason: "only the provider can confirm the deposit was received",
	},
	model.BookingStatusBooked: {
		From:        []model.BookingStatus{model.BookingStatusAccepted, model.BookingStatusDepositReceived},
		Actors:      ActorPerformer,
		Reason:      "a booking can be confirmed only after the request is accepted",
		ActorReason: "only the provider can confirm the booking",
	},
	model.BookingStatusInProgress: {
		From:        startable,
		Actors:      ActorSystem,
		Reason:      "the job has not been confirmed",
		ActorReason: "the job starts automatically at its scheduled time",
	},
	model.BookingStatusCompleted: {
		From:        append(append([]model.BookingStatus{}, startable...), model.BookingStatusInProgress),
		Actors:      ActorSystem,
		Reason:      "the job has not been confirmed",
		ActorReason: "the job completes automatically when its scheduled time ends",
	},
	model.BookingStatusVerified: {
		From:        []model.BookingStatus{model.BookingStatusCompleted},
		Actors:      ActorCustomer | ActorPerformer,
		Reason:      "a job can be verified only after it is completed",
		ActorReason: "only participants can verify the job",
	},
	model.BookingStatusCancelled: {
		From: []model.BookingStatus{
			model.BookingStatusPending,
			model.BookingStatusAccepted,
			model.BookingStatusDepositSent,
			model.BookingStatusDepositReceived,
			model.BookingStatusBooked,
		},
		Actors:         ActorCustomer | ActorPerformer,
		Reason:         "a job that has started or finished cannot be cancelled",
		ActorReason:    "only participants can cancel the booking",
		RequiresReason: true,
		Guard: func(b *model.Booking, role model.Role) string {
			if role == model.RolePerformer && b.Status != model.BookingStatusPending {
				return "the provider can only decline a request before accepting it"
			}
			return ""
		},
	},
	model.BookingStatusExpired: {
		From:        []model.BookingStatus{model.BookingStatusPending},
		Actors:      ActorSystem,
		Reason:      "only a pending request can expire",
		ActorReason: "requests expire automatically",
	},
}

// RuleFor возвращает правило перехода в статус
func RuleFor(to model.BookingStatus) (Rule, bool) {
	r, ok := rules[to]
	return r, ok
}

// Actor кто запрашивает переход
type Actor struct {
	Role model.Role
	ID   *uuid.UUID // nil для системы
}

// SystemActor фоновые задачи
var SystemActor = Actor{Role: model.RoleSystem}

// ActorFor определяет роль пользователя в бронировании
func ActorFor(b *model.Booking, userID uuid.UUID) Actor {
	id := userID
	return Actor{Role: model.RoleOf(b, userID), ID: &id}
}

// IsTurn ход за пользователем, если последнее действие совершил не он.
// Выводится из LastActionBy и нигде не хранится.
func IsTurn(b *model.Booking, userID uuid.UUID) bool {
	if !b.IsParticipant(userID) {
		return false
	}
	return b.LastActionBy == nil || *b.LastActionBy != userID
}

func (r Rule) allows(b *model.Booking, actor Actor) bool {
	switch actor.Role {
	case model.RoleSystem:
		return r.Actors&ActorSystem != 0
	case model.RoleCustomer:
		if r.Actors&ActorCustomer != 0 {
			return true
		}
	case model.RolePerformer:
		if r.Actors&ActorPerformer != 0 {
			return true
		}
	default:
		return false
	}
	if r.Actors&ActorTurn != 0 && actor.ID != nil {
		return IsTurn(b, *actor.ID)
	}
	return false
}

// permitsRole роль вообще может запрашивать этот переход, без учёта хода и ограничений
func (r Rule) permitsRole(role model.Role) bool {
	switch role {
	case model.RoleSystem:
		return r.Actors&ActorSystem != 0
	case model.RoleCustomer:
		return r.Actors&(ActorCustomer|ActorTurn) != 0
	case model.RolePerformer:
		return r.Actors&(ActorPerformer|ActorTurn) != 0
	}
	return false
}

func (r Rule) permitsFrom(s model.BookingStatus) bool {
	for _, from := range r.From {
		if from == s {
			return true
		}
	}
	return false
}

// Check проверяет переход по таблице: роль, исходный статус, ограничения роли и причину
func Check(b *model.Booking, actor Actor, to model.BookingStatus, reason string) error {
	rule, ok := rules[to]
	if !ok {
		return reject(ErrInvalidTransition, fmt.Sprintf("status %q cannot be requested", to))
	}
	if !rule.allows(b, actor) {
		return reject(ErrUnauthorized, rule.ActorReason)
	}
	if !rule.permitsFrom(b.Status) {
		return reject(ErrInvalidTransition, rule.Reason)
	}
	if rule.Guard != nil {
		if msg := rule.Guard(b, actor.Role); msg != "" {
			return reject(ErrUnauthorized, msg)
		}
	}
	if rule.RequiresReason && strings.TrimSpace(reason) == "" {
		return reject(ErrReasonRequired, "a reason is required")
	}
	return nil
}

// Plan проверяет переход и строит условную запись статуса.
// changed=false означает повтор уже применённого перехода: запись и побочные
// эффекты не нужны, но только для роли, которой этот переход вообще доступен.
func Plan(b *model.Booking, actor Actor, to model.BookingStatus, reason string, now time.Time) (model.StatusUpdate, bool, error) {
	rule, ok := rules[to]
	if !ok {
		return model.StatusUpdate{}, false, reject(ErrInvalidTransition, fmt.Sprintf("status %q cannot be requested", to))
	}
	if !rule.permitsRole(actor.Role) {
		return model.StatusUpdate{}, false, reject(ErrUnauthorized, rule.ActorReason)
	}
	if alreadyApplied(b, actor, to) {
		return model.StatusUpdate{}, false, nil
	}
	if err := Check(b, actor, to, reason); err != nil {
		return model.StatusUpdate{}, false, err
	}

	upd := model.StatusUpdate{
		From:    b.Status,
		To:      to,
		ActorID: actor.ID,
		At:      now,
		Reason:  strings.TrimSpace(reason),
	}

	switch to {
	case model.BookingStatusBooked:
		upd.ClaimSlot = true
	case model.BookingStatusCancelled, model.BookingStatusExpired:
		upd.ReleaseSlot = true
	case model.BookingStatusVerified:
		// Выполнение подтверждают обе стороны; пока нет второго подтверждения
		// бронирование остаётся completed с отметкой первой стороны.
		upd.ConfirmedBy = actor.Role
		if !confirmedBy(b, otherRole(actor.Role)) {
			upd.To = model.BookingStatusCompleted
		}
	}

	return upd, true, nil
}

func alreadyApplied(b *model.Booking, actor Actor, to model.BookingStatus) bool {
	if b.Status == to {
		return true
	}
	// Повторное подтверждение той же стороной, пока вторая не подтвердила
	return to == model.BookingStatusVerified &&
		b.Status == model.BookingStatusCompleted &&
		confirmedBy(b, actor.Role)
}

func confirmedBy(b *model.Booking, role model.Role) bool {
	switch role {
	case model.RoleCustomer:
		return b.ConfirmedBySeekerAt != nil
	case model.RolePerformer:
		return b.ConfirmedByProviderAt != nil
	}
	return false
}

func otherRole(role model.Role) model.Role {
	if role == model.RoleCustomer {
		return model.RolePerformer
	}
	return model.RoleCustomer
}
