package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/quiz_platform/internal/service"
	"github.com/labstack/echo/v4"
)

// authStatus maps an AuthenticateUser/RefreshSession outcome to HTTP.
func authStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindInvalidCredentials,
		service.KindMissingToken,
		service.KindInvalidAccountID,
		service.KindAccountNotFound,
		service.KindInvalidPassword,
		service.KindAccountInactive,
		service.KindAccountSuspended:
		return http.StatusBadRequest
	case service.KindInvalidToken, service.KindSessionExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func authFailure(l *slog.Logger, event string, err error) error {
	code := authStatus(err)
	kind := service.KindOf(err)

	msg := http.StatusText(code)
	var ae *service.AuthError
	if errors.As(err, &ae) {
		msg = ae.Message()
	}

	if code >= http.StatusInternalServerError {
		l.Error(event, "status", code, "reason", kind.String(), "error", err)
	} else {
		l.Warn(event, "status", code, "reason", kind.String(), "error", err)
	}
	return echo.NewHTTPError(code, msg)
}

// serviceFailure maps the user-management sentinels.
func serviceFailure(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", 409, "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
