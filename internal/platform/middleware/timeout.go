package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/clinicalquery/internal/platform/httperror"
)

const detailTimedOut = "request timed out"

// RequestTimeout puts a deadline on the request context. The handler runs on
// the request goroutine; a handler that returns context.DeadlineExceeded
// (directly or wrapped) is answered with 504 {"detail":"request timed out"}.
// A non-positive timeout disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Skipper: echomw.DefaultSkipper,
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return httperror.New(http.StatusGatewayTimeout, detailTimedOut).SetInternal(err)
			}
			return err
		},
	})
}
