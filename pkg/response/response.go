package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response.
type Envelope struct {
	Result     bool   `json:"result"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
}

func JSON(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{
		Result:     status < http.StatusBadRequest,
		Message:    message,
		StatusCode: status,
		Data:       data,
	})
}

func OK(c echo.Context, message string, data any) error {
	return JSON(c, http.StatusOK, message, data)
}

func Created(c echo.Context, message string, data any) error {
	return JSON(c, http.StatusCreated, message, data)
}

func Error(c echo.Context, status int, message string) error {
	return JSON(c, status, message, nil)
}

// ErrorHandler renders echo.HTTPError values (binder, router, middleware)
// in the same envelope as handler responses.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = Error(c, code, msg)
}
