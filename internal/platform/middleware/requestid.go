package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ehr/clinicalquery/internal/platform/idgen"
)

const (
	RequestIDHeader = echo.HeaderXRequestID
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID propagates a caller-supplied X-Request-ID or assigns a new one,
// storing it under "request_id" in the echo context and echoing it back.
func RequestID(gens ...idgen.Generator) echo.MiddlewareFunc {
	var gen idgen.Generator = idgen.UUID{}
	if len(gens) > 0 && gens[0] != nil {
		gen = gens[0]
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = gen.NewID()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}
