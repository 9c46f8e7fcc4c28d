package middleware

import (
	"errors"
	"net/http"
	"strings"

	jwthelp "github.com/Skotchmaster/quiz_platform/pkg/jwt"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
	"github.com/labstack/echo/v4"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextEmail  = "email"

	RoleAdmin = "admin"
)

type TokenValidator interface {
	Validate(token string, checkExpiry bool) (*tokens.Claims, error)
}

type AuthMiddleware struct {
	Tokens TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{Tokens: v}
}

type ValidatorFunc func(claims *tokens.Claims) error

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.Claims) error {
		if !strings.EqualFold(claims.Role, RoleAdmin) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AuthMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("middleware", "require_auth")

		raw := accessTokenFrom(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Tokens.Validate(raw, true)
		if err != nil {
			if errors.Is(err, tokens.ErrExpiredToken) {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
			}
			if errors.Is(err, tokens.ErrConfiguration) {
				l.Error("auth_error", "status", 500, "reason", "token service misconfigured", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "authentication unavailable")
			}
			c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		if claims.Type != tokens.TypeAccess {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				l.Warn("auth_denied", "status", 403, "user_id", claims.Subject, "role", claims.Role)
				return err
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// accessTokenFrom prefers the Authorization header over the cookie.
func accessTokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if ck, err := c.Cookie(jwthelp.AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func setUserContext(c echo.Context, claims *tokens.Claims) {
	c.Set(ContextUserID, claims.Subject)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextEmail, claims.Email)
}
