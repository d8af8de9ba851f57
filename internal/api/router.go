// Package api HTTP-интерфейс движка бронирований
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewServer собирает echo со всеми маршрутами
func NewServer(h *Handler, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(h.logger))

	RegisterRoutes(e, h, jwtSecret)
	return e
}

// RegisterRoutes регистрирует маршруты; всё кроме /healthz требует токен
func RegisterRoutes(e *echo.Echo, h *Handler, jwtSecret string) {
	e.GET("/healthz", Health)

	v1 := e.Group("/v1")
	v1.Use(ActorAuth(jwtSecret))

	v1.POST("/bookings", h.CreateBooking)
	v1.GET("/bookings", h.ListBookings)
	v1.GET("/bookings/:id", h.GetBooking)
	v1.POST("/bookings/:id/transitions", h.RequestTransition)
	v1.PUT("/bookings/:id/quote", h.AdjustQuote)

	v1.POST("/bookings/:id/reviews", h.SubmitReview)
	v1.GET("/bookings/:id/reviews", h.ListReviews)
	v1.GET("/bookings/:id/reviews/eligibility", h.ReviewEligibility)

	v1.GET("/providers/:pid/services/:sid/availability", h.GetAvailability)
	v1.PUT("/providers/:pid/services/:sid/availability", h.BulkSetAvailability)

	v1.GET("/ws", h.Stream)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Debug("HTTP request", fields...)
			return nil
		},
	})
}
