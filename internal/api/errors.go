package api

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorBody struct {
	Error    string `json:"error"`
	Reason   string `json:"reason,omitempty"`
	Conflict string `json:"conflict,omitempty"`
}

var kindStatus = map[service.ErrorKind]int{
	service.KindValidation:        http.StatusBadRequest,
	service.KindNotFound:          http.StatusNotFound,
	service.KindUnauthorized:      http.StatusForbidden,
	service.KindInvalidTransition: http.StatusConflict,
	service.KindSlotConflict:      http.StatusConflict,
	service.KindExpired:           http.StatusGone,
	service.KindStaleState:        http.StatusConflict,
}

// respondError переводит ошибку сервиса в ответ. Неклассифицированные ошибки
// логируются и отдаются как 500 без подробностей.
func (h *Handler) respondError(c echo.Context, err error) error {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status, ok := kindStatus[svcErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		return c.JSON(status, errorBody{
			Error:    string(svcErr.Kind),
			Reason:   svcErr.Reason,
			Conflict: string(svcErr.Conflict),
		})
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal", Reason: "internal error"})
}

var errUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: "authentication required"})

func badRequest(reason string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errorBody{Error: string(service.KindValidation), Reason: reason})
}
