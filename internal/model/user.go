package model

import (
	"time"

	"github.com/google/uuid"
)

// Role сторона бронирования, от имени которой выполняется действие
type Role string

const (
	RoleNone      Role = ""
	RoleCustomer  Role = "customer"  // заказчик (seeker)
	RolePerformer Role = "performer" // исполнитель, владелец услуги (provider)
	RoleSystem    Role = "system"    // фоновые задачи
)

// RoleOf определяет роль пользователя в бронировании
func RoleOf(b *Booking, userID uuid.UUID) Role {
	switch userID {
	case b.CustomerID:
		return RoleCustomer
	case b.PerformerID:
		return RolePerformer
	}
	return RoleNone
}

type User struct {
	ID             uuid.UUID `json:"id"`
	DisplayName    string    `json:"display_name"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // куда доставлять уведомления, если задан
	CreatedAt      time.Time `json:"created_at"`
}
