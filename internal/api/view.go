package api

import "github.com/Freeeeeet/booking_engine/internal/model"

type bookingResponse struct {
	*model.Booking
	Total int64 `json:"total"`
}

func bookingView(b *model.Booking) bookingResponse {
	return bookingResponse{Booking: b, Total: b.Total()}
}
