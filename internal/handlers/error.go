package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/auth"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// toHTTPError maps a service error onto an echo HTTP error.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.KindAuth:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case apperr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperr.KindTransientStore:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func requireUserID(c echo.Context) (string, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return userID, nil
}

func requireParam(c echo.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	return value, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return value, nil
}
