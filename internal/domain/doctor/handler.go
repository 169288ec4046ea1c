package doctor

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/middleware"
)

// afterLoginPath is where browsers land after signing in.
const afterLoginPath = "/patients"

type Handler struct {
	svc          *Service
	sessions     *auth.SessionAuthority
	secureCookie bool
}

func NewHandler(svc *Service, sessions *auth.SessionAuthority, secureCookie bool) *Handler {
	return &Handler{svc: svc, sessions: sessions, secureCookie: secureCookie}
}

// RegisterRoutes mounts the account endpoints. credentials wraps the
// endpoints that accept passwords, typically with a stricter rate limit.
func (h *Handler) RegisterRoutes(g *echo.Group, credentials ...echo.MiddlewareFunc) {
	g.GET("/register", h.RegisterForm)
	g.POST("/register", h.Register, credentials...)
	g.GET("/login", h.LoginForm)
	g.POST("/login", h.Login, credentials...)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

// FormField describes one input of a form.
type FormField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Hint     string   `json:"hint,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

// Form describes a form a client can render and submit.
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

func (h *Handler) RegisterForm(c echo.Context) error {
	return c.JSON(http.StatusOK, Form{
		Action: "/register",
		Method: http.MethodPost,
		Fields: []FormField{
			{Name: "username", Type: "text", Required: true, Hint: msgUsernameLength},
			{Name: "password", Type: "password", Required: true, Hint: msgPasswordPolicy},
			{Name: "confirm_password", Type: "password", Required: true},
		},
	})
}

func (h *Handler) LoginForm(c echo.Context) error {
	return c.JSON(http.StatusOK, Form{
		Action: "/login",
		Method: http.MethodPost,
		Fields: []FormField{
			{Name: "username", Type: "text", Required: true},
			{Name: "password", Type: "password", Required: true},
		},
	})
}

func (h *Handler) Register(c echo.Context) error {
	var in Registration
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	return c.JSON(http.StatusCreated, d)
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Doctor    *Doctor   `json:"doctor"`
}

func (h *Handler) Login(c echo.Context) error {
	var in Credentials
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	d, err := h.svc.Verify(ctx, in)
	if err != nil {
		return err
	}
	issued, err := h.sessions.Login(ctx, d.Principal())
	if err != nil {
		return err
	}

	auth.SetSessionCookie(c, issued.Token, issued.Session.ExpiresAt, h.secureCookie)
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, afterLoginPath)
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     issued.Token,
		ExpiresAt: issued.Session.ExpiresAt,
		Doctor:    d,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return err
	}
	if err := h.sessions.Logout(ctx, auth.SessionIDFromContext(ctx)); err != nil {
		return err
	}

	auth.ClearSessionCookie(c, h.secureCookie)
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), caller.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
