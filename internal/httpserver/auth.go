package httpserver

import (
	"net/http"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/service"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
	jwthelp "github.com/Skotchmaster/quiz_platform/pkg/jwt"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/response"
	"github.com/labstack/echo/v4"
)

type ExpiryReader interface {
	ReadExpiry(token string) (time.Time, error)
}

type AuthHTTP struct {
	Svc    *service.AuthService
	Tokens ExpiryReader
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req)
	if err != nil {
		return serviceFailure(l, "register_error", err)
	}
	return response.Created(c, "registration successful", user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	sess, err := h.Svc.AuthenticateUser(ctx, req)
	if err != nil {
		return authFailure(l, "login_failed", err)
	}

	h.setCookies(c, sess)
	l.Info("login_successful", "user_id", sess.UserID)
	return response.OK(c, "login successful", transport.TokenPair{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

// Refresh takes the token from the body and falls back to the cookie.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.RefreshToken == "" {
		if ck, err := c.Cookie(jwthelp.RefreshCookie); err == nil {
			req.RefreshToken = ck.Value
		}
	}

	sess, err := h.Svc.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		if code := authStatus(err); code == http.StatusUnauthorized {
			c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
		}
		return authFailure(l, "refresh_failed", err)
	}

	h.setCookies(c, sess)
	l.Info("refresh_successful", "user_id", sess.UserID)
	return response.OK(c, "token refreshed", transport.TokenPair{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

// Logout only clears cookies; tokens are stateless and expire on their own.
func (h *AuthHTTP) Logout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_logout")

	c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))

	l.Info("successful_logout")
	return response.OK(c, "logged out", nil)
}

func (h *AuthHTTP) setCookies(c echo.Context, sess *service.Session) {
	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, sess.AccessToken, "/", h.expiry(sess.AccessToken)))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, sess.RefreshToken, "/", h.expiry(sess.RefreshToken)))
}

// expiry is zero (a session cookie) when the token cannot be decoded.
func (h *AuthHTTP) expiry(token string) time.Time {
	if h.Tokens == nil {
		return time.Time{}
	}
	exp, err := h.Tokens.ReadExpiry(token)
	if err != nil {
		return time.Time{}
	}
	return exp
}
