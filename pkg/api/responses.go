package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// envelope is the uniform JSON wrapper on every response: status is
// "success" for 2xx, "fail" for client errors, "error" for server errors.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondSuccess(c *echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: "success", Data: data})
}

// envelopeErrorHandler renders echo errors in the envelope format so
// clients parse one shape everywhere.
func envelopeErrorHandler(c *echo.Context, err error) {
	code := http.StatusInternalServerError
	message := "internal server error"

	var sc echo.HTTPStatusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
		if httpErr, ok := sc.(*echo.HTTPError); ok && httpErr.Message != "" {
			message = httpErr.Message
		} else {
			message = http.StatusText(code)
		}
	}

	status := "error"
	if code < 500 {
		status = "fail"
	}

	if resp, _ := echo.UnwrapResponse(c.Response()); resp != nil && resp.Committed {
		return
	}
	_ = c.JSON(code, envelope{Status: status, Message: message})
}
