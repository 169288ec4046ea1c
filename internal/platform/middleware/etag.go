package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// ETagConfig controls ETag generation for successful GET and HEAD responses.
type ETagConfig struct {
	Skipper echomw.Skipper
	// Vary lists the request headers the response depends on.
	Vary []string
}

// DefaultETagConfig varies on Accept (HTML vs JSON) and Cookie (the session).
func DefaultETagConfig() ETagConfig {
	return ETagConfig{Vary: []string{"Accept", "Cookie", "Authorization"}}
}

// bufferedResponseWriter holds the body back so a validator can be computed
// before anything reaches the client.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{writer: w, statusCode: http.StatusOK}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferedResponseWriter) Flush() {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ETag sets a weak ETag on 2xx GET/HEAD responses and answers a matching
// If-None-Match with 304. Cache-Control is left to SecurityHeaders.
func ETag(cfg ETagConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = echomw.DefaultSkipper
	}
	vary := strings.Join(cfg.Vary, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if cfg.Skipper(c) || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := newBufferedResponseWriter(orig)
			res.Writer = buf

			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			if buf.statusCode < 200 || buf.statusCode >= 300 {
				return buf.flushTo()
			}

			h := res.Header()
			if vary != "" {
				h.Set("Vary", vary)
			}
			etag := computeETag(buf.buf.Bytes())
			h.Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatch compares an If-None-Match value against etag using weak
// comparison. The header may hold a list or "*".
func etagMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
