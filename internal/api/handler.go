package api

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/realtime"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler HTTP-обработчики поверх сервисов бронирования
type Handler struct {
	bookings     *service.BookingService
	availability *service.AvailabilityService
	reviews      *service.ReviewService
	hub          *realtime.Hub
	logger       *zap.Logger
}

func NewHandler(
	bookings *service.BookingService,
	availability *service.AvailabilityService,
	reviews *service.ReviewService,
	hub *realtime.Hub,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bookings:     bookings,
		availability: availability,
		reviews:      reviews,
		hub:          hub,
		logger:       logger,
	}
}

type createBookingRequest struct {
	PerformerID     uuid.UUID         `json:"performer_id"`
	ServiceID       uuid.UUID         `json:"service_id"`
	JobDate         time.Time         `json:"job_date"`
	StartTime       string            `json:"start_time"`
	DurationMinutes int               `json:"duration"`
	PriceBreakdown  []model.PriceLine `json:"price_breakdown"`
}

// CreateBooking POST /v1/bookings
func (h *Handler) CreateBooking(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return errUnauthenticated
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}

	b, err := h.bookings.CreateBooking(c.Request().Context(), service.CreateBookingRequest{
		CustomerID:      actor,
		PerformerID:     body.PerformerID,
		ServiceID:       body.ServiceID,
		JobDate:         body.JobDate,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
		PriceBreakdown:  body.PriceBreakdown,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingView(b))
}

// ListBookings GET /v1/bookings
func (h *Handler) ListBookings(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return errUnauthenticated
	}
	list, err := h.bookings.ListBookings(c.Request().Context(), actor)
	if err != nil {
		return h.respondError(c, err)
	}
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, bookingView(b))
	}
	return c.JSON(http.StatusOK, out)
}

// GetBooking GET /v1/bookings/:id
func (h *Handler) GetBooking(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	b, err := h.bookings.GetBooking(c.Request().Context(), id, actor)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

type transitionRequest struct {
	Status model.BookingStatus `json:"status"`
	Reason string              `json:"reason"`
}

// RequestTransition POST /v1/bookings/:id/transitions
func (h *Handler) RequestTransition(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	var body transitionRequest
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}

	b, err := h.bookings.RequestTransition(c.Request().Context(), id, actor, body.Status, body.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

type quoteRequest struct {
	HourlyRate     *int64            `json:"hourly_rate"`
	PriceBreakdown []model.PriceLine `json:"price_breakdown"`
}

// AdjustQuote PUT /v1/bookings/:id/quote
func (h *Handler) AdjustQuote(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	var body quoteRequest
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}

	b, err := h.bookings.AdjustQuote(c.Request().Context(), id, actor, body.HourlyRate, body.PriceBreakdown)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

// GetAvailability GET /v1/providers/:pid/services/:sid/availability?month=YYYY-MM
func (h *Handler) GetAvailability(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return errUnauthenticated
	}
	providerID, serviceID, err := providerAndService(c)
	if err != nil {
		return badRequest("invalid provider or service id")
	}

	cal, err := h.availability.GetAvailability(c.Request().Context(), actor, providerID, serviceID, c.QueryParam("month"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, cal)
}

type bulkAvailabilityRequest struct {
	Dates     []string `json:"dates"`
	Available bool     `json:"available"`
	Price     *int64   `json:"price"`
}

// BulkSetAvailability PUT /v1/providers/:pid/services/:sid/availability
func (h *Handler) BulkSetAvailability(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return errUnauthenticated
	}
	providerID, serviceID, err := providerAndService(c)
	if err != nil {
		return badRequest("invalid provider or service id")
	}
	var body bulkAvailabilityRequest
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}

	dates := make([]time.Time, 0, len(body.Dates))
	for _, raw := range body.Dates {
		d, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return badRequest("dates must be in YYYY-MM-DD format")
		}
		dates = append(dates, d)
	}

	res, err := h.availability.BulkSetAvailability(c.Request().Context(), actor, providerID, serviceID, dates, body.Available, body.Price)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SubmitReview POST /v1/bookings/:id/reviews
func (h *Handler) SubmitReview(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	var body service.ReviewPayload
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}

	r, err := h.reviews.Submit(c.Request().Context(), id, actor, body)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListReviews GET /v1/bookings/:id/reviews
func (h *Handler) ListReviews(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	list, err := h.reviews.ListVisible(c.Request().Context(), id, actor)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// ReviewEligibility GET /v1/bookings/:id/reviews/eligibility
func (h *Handler) ReviewEligibility(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	e, err := h.reviews.Eligibility(c.Request().Context(), id, actor)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Stream GET /v1/ws
func (h *Handler) Stream(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return errUnauthenticated
	}
	if err := h.hub.ServeWS(c.Response(), c.Request(), actor); err != nil {
		// Upgrader уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
	}
	return nil
}

// Health GET /healthz
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// actorAndID ошибки возвращаются как *echo.HTTPError и отдаются обработчиком ошибок echo
func (h *Handler) actorAndID(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	actor, err := actorID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, errUnauthenticated
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, badRequest("invalid booking id")
	}
	return actor, id, nil
}

func providerAndService(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	providerID, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	serviceID, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return providerID, serviceID, nil
}
