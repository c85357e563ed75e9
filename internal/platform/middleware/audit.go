package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// auditEntry records one access to patient-identifiable data.
type auditEntry struct {
	ResourceType string
	PatientID    string
	Action       string // read, create, search
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	RequestID    string
	StatusCode   int
}

// Audit logs a phi_access line for every request under /patients/ and
// /orders/, after the handler has run so the outcome is known.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := auditEntry{
				Path:         path,
				Method:       req.Method,
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   c.Response().Status,
				RequestID:    RequestIDFrom(c),
				Action:       httpMethodToAction(req.Method, path),
				ResourceType: extractResourceType(path),
				PatientID:    extractPatientID(path),
			}
			var he *echo.HTTPError
			if errors.As(err, &he) {
				entry.StatusCode = he.Code
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Str("user_agent", entry.UserAgent).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/patients/") || strings.HasPrefix(path, "/orders/")
}

func httpMethodToAction(method, path string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodGet, http.MethodHead:
		if strings.HasSuffix(path, "/labs") {
			return "search"
		}
		return "read"
	default:
		return "read"
	}
}

// extractResourceType maps /patients/<id>/<sub> to <sub> and /orders/<kind>
// to "order".
//
//   - /patients/12345/summary -> summary
//   - /patients/12345/labs    -> labs
//   - /orders/medication      -> order
func extractResourceType(path string) string {
	if strings.HasPrefix(path, "/orders/") {
		return "order"
	}
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/patients/"), "/"), "/")
	if len(segments) >= 2 && segments[1] != "" {
		return segments[1]
	}
	return "patient"
}

func extractPatientID(path string) string {
	if !strings.HasPrefix(path, "/patients/") {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/patients/"), "/")
	return segments[0]
}
