package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/quiz_platform/internal/metrics"
	jwthelp "github.com/Skotchmaster/quiz_platform/pkg/jwt"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	authmw "github.com/Skotchmaster/quiz_platform/pkg/middleware/auth"
	"github.com/Skotchmaster/quiz_platform/pkg/response"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type Deps struct {
	Auth  *AuthHTTP
	Users *UserHTTP
	Stats *StatsHTTP

	Tokens  authmw.TokenValidator
	Metrics *metrics.Metrics
	Ready   func(ctx context.Context) error

	// AuthRateLimit is requests per second per client IP; 0 disables it.
	AuthRateLimit float64
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	authMw := authmw.NewAuthMiddleware(d.Tokens)
	api := e.Group("/api/v1")
	// login and register never read token cookies and stay outside CSRF.
	csrf := echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper:        withoutCookieCredentials,
		CookieName:     CSRFCookie,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
	})

	auth := api.Group("/auth")
	if d.AuthRateLimit > 0 {
		auth.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(d.AuthRateLimit))))
	}
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh-token", d.Auth.Refresh, csrf)
	auth.POST("/logout", d.Auth.Logout, csrf, authMw.RequireAuth)

	api.GET("/landing/summary", d.Stats.Landing, csrf)

	admin := api.Group("/admin", csrf, authMw.RequireAdmin)
	admin.GET("/dashboard", d.Stats.Dashboard)
	admin.GET("/users", d.Users.List)
	admin.GET("/users/search", d.Users.Search)
	admin.GET("/users/:id", d.Users.Get)
	admin.POST("/users", d.Users.Create)
	admin.PATCH("/users/:id", d.Users.Update)
	admin.DELETE("/users/:id", d.Users.Delete)
}

const CSRFCookie = "_csrf"

// withoutCookieCredentials skips CSRF checks for requests that cannot ride on
// ambient browser credentials: bearer-token clients and cookieless requests.
func withoutCookieCredentials(c echo.Context) bool {
	if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
		return true
	}
	for _, name := range []string{jwthelp.AccessCookie, jwthelp.RefreshCookie} {
		if _, err := c.Cookie(name); err == nil {
			return false
		}
	}
	return true
}

func (d *Deps) ready(c echo.Context) error {
	if d.Ready == nil {
		return c.NoContent(http.StatusOK)
	}
	if err := d.Ready(c.Request().Context()); err != nil {
		logging.FromContext(c.Request().Context()).Warn("not_ready", "status", 503, "error", err)
		return response.Error(c, http.StatusServiceUnavailable, "not ready")
	}
	return c.NoContent(http.StatusOK)
}
