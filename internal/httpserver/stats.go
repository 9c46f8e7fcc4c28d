package httpserver

import (
	"github.com/Skotchmaster/quiz_platform/internal/service"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/response"
	"github.com/labstack/echo/v4"
)

type StatsHTTP struct {
	Svc *service.StatsService
}

func (h *StatsHTTP) Landing(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "landing_summary")

	s, err := h.Svc.Landing(ctx)
	if err != nil {
		return serviceFailure(l, "landing_summary_error", err)
	}
	return response.OK(c, "landing summary", s)
}

func (h *StatsHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_dashboard")

	d, err := h.Svc.Dashboard(ctx)
	if err != nil {
		return serviceFailure(l, "dashboard_error", err)
	}
	return response.OK(c, "dashboard", d)
}
