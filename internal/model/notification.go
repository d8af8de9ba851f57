package model

// NotificationKind тип уведомления для внешней доставки
type NotificationKind string

const (
	NotifyBookingRequested  NotificationKind = "booking_requested"
	NotifyStatusChanged     NotificationKind = "booking_status_changed"
	NotifyQuoteAdjusted     NotificationKind = "booking_quote_adjusted"
	NotifyReviewWindowOpen  NotificationKind = "review_window_open"
	NotifyReviewReceived    NotificationKind = "review_received" // тизер без содержимого
	NotifyReviewsPublished  NotificationKind = "reviews_published"
	NotifyReviewAutoPublish NotificationKind = "review_auto_published"
)

// Событие для real-time канала
const (
	EventBookingUpdated = "booking.updated"
	EventReviewsVisible = "reviews.visible"
)
