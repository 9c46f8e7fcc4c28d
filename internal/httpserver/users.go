package httpserver

import (
	"net/http"
	"strconv"

	"github.com/Skotchmaster/quiz_platform/internal/service"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
	"github.com/Skotchmaster/quiz_platform/internal/util"
	"github.com/Skotchmaster/quiz_platform/pkg/logging"
	"github.com/Skotchmaster/quiz_platform/pkg/response"
	"github.com/labstack/echo/v4"
)

type UserHTTP struct {
	Svc *service.UserService
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func (h *UserHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.list")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Svc.List(ctx, page, size)
	if err != nil {
		return serviceFailure(l, "list_users_error", err)
	}
	return response.OK(c, "users", res)
}

func (h *UserHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	res, err := h.Svc.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return serviceFailure(l, "search_users_error", err)
	}
	return response.OK(c, "users", res)
}

func (h *UserHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.get")

	id, err := parseID(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.Get(ctx, id)
	if err != nil {
		return serviceFailure(l, "get_user_error", err)
	}
	return response.OK(c, "user", user)
}

func (h *UserHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.create")

	var req transport.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_user_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Create(ctx, req)
	if err != nil {
		return serviceFailure(l, "create_user_error", err)
	}
	l.Info("user_created", "user_id", user.ID)
	return response.Created(c, "user created", user)
}

func (h *UserHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.update")

	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transport.PatchUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_user_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Update(ctx, id, req)
	if err != nil {
		return serviceFailure(l, "update_user_error", err)
	}
	l.Info("user_updated", "user_id", user.ID)
	return response.OK(c, "user updated", user)
}

func (h *UserHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.delete")

	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.Delete(ctx, id); err != nil {
		return serviceFailure(l, "delete_user_error", err)
	}
	l.Info("user_deleted", "user_id", id)
	return response.OK(c, "user deleted", nil)
}
