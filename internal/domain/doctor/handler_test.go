package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *auth.SessionAuthority, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService()
	store := auth.NewMemorySessionStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	sessions := auth.NewSessionAuthority(store, auth.NewTokenSigner([]byte("0123456789abcdef0123456789abcdef")), time.Hour, zerolog.Nop())
	return NewHandler(svc, sessions, false), sessions, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func register(t *testing.T, h *Handler, e *echo.Echo) *Doctor {
	t.Helper()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/register", `{"username":"doc1","password":"Passw0rd!","confirm_password":"Passw0rd!"}`), rec)
	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	var d Doctor
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return &d
}

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/register", `{"username":"doc1","password":"Passw0rd!"}`), rec)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password hash: %s", rec.Body.String())
	}
}

func TestHandler_Register_FormRedirectsToLogin(t *testing.T) {
	h, _, e := newTestHandler(t)

	form := url.Values{"username": {"doc1"}, "password": {"Passw0rd!"}, "confirm_password": {"Passw0rd!"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/login" {
		t.Errorf("expected /login, got %s", loc)
	}
}

func TestHandler_Register_Duplicate(t *testing.T) {
	h, _, e := newTestHandler(t)
	register(t, h, e)

	c := e.NewContext(jsonRequest(http.MethodPost, "/register", `{"username":"doc1","password":"Passw0rd!"}`), httptest.NewRecorder())
	if err := h.Register(c); !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestHandler_Login(t *testing.T) {
	h, sessions, e := newTestHandler(t)
	d := register(t, h, e)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/login", `{"username":"doc1","password":"Passw0rd!"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected token")
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderSetCookie), auth.CookieName+"=") {
		t.Errorf("expected session cookie, got %q", rec.Header().Get(echo.HeaderSetCookie))
	}

	sess, err := sessions.Resolve(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.DoctorID != d.ID {
		t.Errorf("expected doctor %s, got %s", d.ID, sess.DoctorID)
	}
}

func TestHandler_Login_FormRedirects(t *testing.T) {
	h, _, e := newTestHandler(t)
	register(t, h, e)

	form := url.Values{"username": {"doc1"}, "password": {"Passw0rd!"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/patients" {
		t.Errorf("expected /patients, got %s", loc)
	}
}

func TestHandler_Login_WrongPassword(t *testing.T) {
	h, _, e := newTestHandler(t)
	register(t, h, e)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/login", `{"username":"doc1","password":"nope"}`), rec)
	if err := h.Login(c); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if rec.Header().Get(echo.HeaderSetCookie) != "" {
		t.Error("expected no cookie on failed login")
	}
}

func TestHandler_Logout(t *testing.T) {
	h, sessions, e := newTestHandler(t)
	d := register(t, h, e)

	issued, err := sessions.Login(context.Background(), d.Principal())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), d.Principal(), issued.Session.ID))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderSetCookie), "Max-Age=0") {
		t.Errorf("expected cookie to be cleared, got %q", rec.Header().Get(echo.HeaderSetCookie))
	}
	if _, err := sessions.Resolve(context.Background(), issued.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected token to be dead after logout, got %v", err)
	}
}

func TestHandler_Logout_Anonymous(t *testing.T) {
	h, _, e := newTestHandler(t)

	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/logout", nil), httptest.NewRecorder())
	if err := h.Logout(c); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, _, e := newTestHandler(t)
	d := register(t, h, e)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), d.Principal(), uuid.New()))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Doctor
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != d.ID {
		t.Errorf("expected %s, got %s", d.ID, got.ID)
	}
}

func TestHandler_Forms(t *testing.T) {
	h, _, e := newTestHandler(t)

	for name, fn := range map[string]echo.HandlerFunc{"/register": h.RegisterForm, "/login": h.LoginForm} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, name, nil), rec)
		if err := fn(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		var f Form
		json.Unmarshal(rec.Body.Bytes(), &f)
		if f.Action != name || f.Method != http.MethodPost {
			t.Errorf("%s: unexpected form %+v", name, f)
		}
		if len(f.Fields) == 0 {
			t.Errorf("%s: expected fields", name)
		}
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler(t)
	h.RegisterRoutes(e.Group(""))

	want := map[string]bool{
		"GET:/register":  false,
		"POST:/register": false,
		"GET:/login":     false,
		"POST:/login":    false,
		"POST:/logout":   false,
		"GET:/me":        false,
	}
	for _, r := range e.Routes() {
		key := r.Method + ":" + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("missing route: %s", route)
		}
	}
}
