package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const defaultBodyLimit = "1M"

// BodyLimit rejects request bodies larger than limit ("512K", "1M", ...)
// with 413. An empty limit means 1M.
func BodyLimit(limit string) echo.MiddlewareFunc {
	if limit == "" {
		limit = defaultBodyLimit
	}
	return echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{Limit: limit})
}
