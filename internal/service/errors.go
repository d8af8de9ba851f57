package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/lifecycle"
)

// ErrorKind класс отказа, который видит пользователь
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindSlotConflict      ErrorKind = "slot_conflict"
	KindExpired           ErrorKind = "expired"
	KindStaleState        ErrorKind = "stale_state"
)

// ConflictReason уточняет конфликт слота, чтобы интерфейс предложил разные шаги
type ConflictReason string

const (
	ConflictAlreadyBooked ConflictReason = "already_booked"
	ConflictDateClosed    ConflictReason = "date_closed"
)

// Error типизированный отказ с причиной для пользователя
type Error struct {
	Kind     ErrorKind
	Reason   string
	Conflict ConflictReason
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is сравнивает по классу, чтобы работал errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Conflict != "" && t.Conflict != e.Conflict {
		return false
	}
	return t.Kind == e.Kind
}

// Эталоны для errors.Is
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrSlotConflict      = &Error{Kind: KindSlotConflict}
	ErrExpired           = &Error{Kind: KindExpired}
	ErrStaleState        = &Error{Kind: KindStaleState}
)

func validationErr(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

func notFoundErr(reason string) error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func unauthorizedErr(reason string) error {
	return &Error{Kind: KindUnauthorized, Reason: reason}
}

func invalidTransitionErr(reason string) error {
	return &Error{Kind: KindInvalidTransition, Reason: reason}
}

func expiredErr(reason string) error {
	return &Error{Kind: KindExpired, Reason: reason}
}

func staleErr(reason string) error {
	return &Error{Kind: KindStaleState, Reason: reason}
}

func slotConflictErr(conflict ConflictReason) error {
	reason := "this date is already booked"
	if conflict == ConflictDateClosed {
		reason = "the provider has closed this date"
	}
	return &Error{Kind: KindSlotConflict, Reason: reason, Conflict: conflict}
}

// fromLifecycle переводит отказ таблицы переходов в ошибку сервиса с той же причиной
func fromLifecycle(err error) error {
	var rej *lifecycle.RejectError
	if !errors.As(err, &rej) {
		return err
	}
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return unauthorizedErr(rej.Reason)
	case errors.Is(err, lifecycle.ErrReasonRequired):
		return validationErr("%s", rej.Reason)
	default:
		return invalidTransitionErr(rej.Reason)
	}
}
