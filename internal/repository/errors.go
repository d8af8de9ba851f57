package repository

import "errors"

// Общие ошибки хранилищ. Реализация в памяти возвращает те же значения.
var (
	// ErrNotFound строка исчезла между чтением и условной записью
	ErrNotFound = errors.New("not found")
	// ErrStatusChanged статус бронирования уже не совпадает с ожидаемым
	ErrStatusChanged = errors.New("booking status changed")
	// ErrSlotTaken день уже занят другим активным бронированием
	ErrSlotTaken = errors.New("slot already taken")
	// ErrReviewLocked отзыв уже опубликован и не редактируется
	ErrReviewLocked = errors.New("review already published")
)
