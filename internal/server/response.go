package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// Response はAPIの共通レスポンスです
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// statusOf はドメインエラーをHTTPステータスに変換します
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorHandler はハンドラーが返したエラーを共通レスポンスに変換します
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusOf(err)
		message := err.Error()

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, isString := he.Message.(string); isString {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err),
			)
			message = http.StatusText(status)
		}

		var sendErr error
		if c.Request().Method == http.MethodHead {
			sendErr = c.NoContent(status)
		} else {
			sendErr = c.JSON(status, Response{Success: false, Message: message})
		}
		if sendErr != nil {
			logger.Warn("failed to write error response", zap.Error(sendErr))
		}
	}
}
