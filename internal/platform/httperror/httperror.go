// Package httperror renders every error that reaches echo as a JSON body of
// the form {"detail": "..."}.
package httperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the wire shape of an error response.
type Body struct {
	Detail string `json:"detail"`
}

// New is shorthand for echo.NewHTTPError with a string detail.
func New(code int, detail string) *echo.HTTPError {
	return echo.NewHTTPError(code, detail)
}

// Handler returns an echo.HTTPErrorHandler. Errors that are not
// *echo.HTTPError are logged and surfaced as a generic 500.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			detail = messageOf(he)
			if he.Internal != nil {
				logger.Error().Err(he.Internal).
					Str("request_id", requestID(c)).
					Int("status", code).
					Msg("request failed")
			}
		} else {
			logger.Error().Err(err).
				Str("request_id", requestID(c)).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, Body{Detail: detail})
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
