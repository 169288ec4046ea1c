package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// User-facing messages.
const (
	MsgDuplicateUsername = "Username already taken."
	MsgInvalidLogin      = "Invalid username or password. Try again."
	MsgLoginRequired     = "authentication required"
	MsgNotFound          = "Unauthorized access or patient not found."
	MsgInternal          = "internal server error"
)

// Browser redirect targets.
const (
	LoginPath    = "/login"    // session required
	PatientsPath = "/patients" // missing or foreign resource
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorHandler converts handler errors to HTTP responses. Missing and
// foreign resources share one 404 body.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get("request_id").(string)
		status, body := classify(err)
		body.RequestID = rid

		if target := browserRedirect(err); target != "" && WantsHTML(c.Request()) {
			if rerr := c.Redirect(http.StatusSeeOther, target); rerr != nil {
				logger.Error().Err(rerr).Str("request_id", rid).Msg("write redirect")
			}
			return
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Str("request_id", rid).Msg("write error response")
		}
	}
}

// browserRedirect returns where an HTML client is sent for err, or "".
func browserRedirect(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return LoginPath
	case errors.Is(err, apperr.ErrNotFoundOrUnauthorized):
		return PatientsPath
	}
	return ""
}

func classify(err error) (int, ErrorResponse) {
	var ve *apperr.ValidationError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: apperr.ErrValidation.Error(), Fields: ve.Fields()}
	case errors.Is(err, apperr.ErrDuplicateUsername):
		return http.StatusConflict, ErrorResponse{Error: MsgDuplicateUsername}
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: MsgInvalidLogin}
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: MsgLoginRequired}
	case errors.Is(err, apperr.ErrNotFoundOrUnauthorized):
		return http.StatusNotFound, ErrorResponse{Error: MsgNotFound}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorResponse{Error: msg}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: MsgInternal}
	}
}

// WantsHTML reports whether the client asked for an HTML response.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// StatusFor returns the status code ErrorHandler sends for err.
func StatusFor(err error) int {
	status, _ := classify(err)
	return status
}
