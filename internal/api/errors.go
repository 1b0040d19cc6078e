package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/retry"
	"github.com/iscle/haven-go/internal/wallpaper"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // request id of the failed request
}

// statusFor maps a service error onto an HTTP status and client message.
func statusFor(err error) (int, string) {
	var exhausted *retry.ExhaustedError
	switch {
	case wallpaper.IsEmptyResult(err):
		return http.StatusNotFound, "no photos found for this query"
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.IsNotFound(err):
		return http.StatusNotFound, "not found"
	case errors.As(err, &exhausted):
		return http.StatusServiceUnavailable, "photo search is unavailable, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// HandleError logs err and writes the mapped error response.
func (s *Server) HandleError(c echo.Context, err error) error {
	code, message := statusFor(err)
	return s.writeError(c, err, message, code)
}

func (s *Server) writeError(c echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	// Server-side failures keep their cause in the log only.
	if err != nil && code < http.StatusInternalServerError {
		resp.Error = logger.RedactSensitiveData(err.Error())
	}

	log := s.log.WithContext(c.Request().Context())
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API error", fields...)
	}

	return c.JSON(code, resp)
}

// errorHandler renders errors returned by handlers and by echo itself
// (unknown routes, body limits, panics) in the same shape.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		_ = s.writeError(c, nil, message, he.Code)
		return
	}
	_ = s.HandleError(c, err)
}
