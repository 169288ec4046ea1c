package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

// Audit writes one access_audit log line for every request that touches
// patients or medical records, after the handler has run.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resource := auditResource(c.Path())
			if resource == "" {
				return next(c)
			}

			err := next(c)

			req := c.Request()
			status := c.Response().Status
			if err != nil {
				status = StatusFor(err)
			}
			rid, _ := c.Get("request_id").(string)

			evt := logger.Info()
			if status == http.StatusNotFound || status == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "access_audit").
				Str("request_id", rid).
				Str("doctor_id", auth.UserIDFromContext(req.Context())).
				Str("resource", resource).
				Str("resource_id", auditResourceID(c)).
				Str("action", auditAction(req.Method, c.Path())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Int("status", status).
				Msg("patient_data_access")

			return err
		}
	}
}

// auditResource maps a route path to the audited resource, or "".
func auditResource(route string) string {
	switch {
	case strings.HasPrefix(route, "/patients/:id/records"), strings.HasPrefix(route, "/records"):
		return "record"
	case strings.HasPrefix(route, "/patients"), strings.HasPrefix(route, "/edit_patient"), route == "/delete":
		return "patient"
	}
	return ""
}

func auditResourceID(c echo.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if c.Path() == "/delete" {
		return c.FormValue("id")
	}
	return ""
}

func auditAction(method, route string) string {
	if strings.HasSuffix(route, "/delete") {
		return "delete"
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		if strings.Contains(route, ":id") && !strings.HasSuffix(route, "/records") {
			return "update"
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}
