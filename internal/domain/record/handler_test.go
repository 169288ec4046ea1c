package record

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	fx := newFixture()
	return NewHandler(fx.svc), fx, echo.New()
}

func asCaller(req *http.Request, p auth.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), p, uuid.New()))
}

func TestHandler_Add_JSON(t *testing.T) {
	h, fx, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"diagnosis":"flu","treatment":"rest"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(req, doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(fx.patientA.String())

	if err := h.Add(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TreatmentPlan == nil || *got.TreatmentPlan != "rest" {
		t.Errorf("expected treatment plan rest, got %v", got.TreatmentPlan)
	}
	if got.Medications != nil {
		t.Errorf("expected medications null, got %q", *got.Medications)
	}
	if !strings.Contains(rec.Body.String(), `"medications":null`) {
		t.Errorf("expected explicit null, got %s", rec.Body.String())
	}
}

func TestHandler_Add_FormRedirects(t *testing.T) {
	h, fx, e := newTestHandler()

	form := url.Values{"diagnosis": {"flu"}, "treatment": {"rest"}, "allergies": {""}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(req, doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(fx.patientA.String())

	if err := h.Add(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	want := "/patients/" + fx.patientA.String() + "/records"
	if loc := rec.Header().Get(echo.HeaderLocation); loc != want {
		t.Errorf("expected %s, got %s", want, loc)
	}

	items, _ := fx.svc.ListForPatient(context.Background(), doctorA, fx.patientA)
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
	if items[0].TreatmentPlan == nil || *items[0].TreatmentPlan != "rest" {
		t.Errorf("expected treatment alias to be stored, got %v", items[0].TreatmentPlan)
	}
	if items[0].Allergies != nil {
		t.Errorf("expected empty allergies to be null, got %q", *items[0].Allergies)
	}
}

func TestHandler_Add_ForeignPatient(t *testing.T) {
	h, fx, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(asCaller(req, doctorA), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(fx.patientB.String())

	if err := h.Add(c); !errors.Is(err, apperr.ErrNotFoundOrUnauthorized) {
		t.Errorf("expected ErrNotFoundOrUnauthorized, got %v", err)
	}
}

func TestHandler_ListForPatient(t *testing.T) {
	h, fx, e := newTestHandler()
	fx.svc.Add(context.Background(), doctorA, fx.patientA, fullFields())

	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(httptest.NewRequest(http.MethodGet, "/", nil), doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(fx.patientA.String())

	if err := h.ListForPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Record
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 record, got %d", len(items))
	}
}

func TestHandler_Get(t *testing.T) {
	h, fx, e := newTestHandler()
	r, _ := fx.svc.Add(context.Background(), doctorA, fx.patientA, fullFields())

	for _, tt := range []struct {
		name   string
		caller auth.Principal
		id     string
		want   error
	}{
		{"owner", doctorA, r.ID.String(), nil},
		{"foreign", doctorB, r.ID.String(), apperr.ErrNotFoundOrUnauthorized},
		{"malformed", doctorA, "7", apperr.ErrNotFoundOrUnauthorized},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(asCaller(httptest.NewRequest(http.MethodGet, "/", nil), tt.caller), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			err := h.Get(c)
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHandler_Edit_FormOverwrites(t *testing.T) {
	h, fx, e := newTestHandler()
	r, _ := fx.svc.Add(context.Background(), doctorA, fx.patientA, fullFields())

	form := url.Values{"diagnosis": {"flu"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(req, doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.Edit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := fx.repo.records[r.ID]
	if stored.Diagnosis == nil || *stored.Diagnosis != "flu" {
		t.Errorf("expected diagnosis flu, got %v", stored.Diagnosis)
	}
	if stored.Medications != nil || stored.Description != nil {
		t.Errorf("expected other fields cleared, got %+v", stored)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, fx, e := newTestHandler()
	r, _ := fx.svc.Add(context.Background(), doctorA, fx.patientA, fullFields())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMETextHTML)
	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(req, doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if _, ok := fx.repo.records[r.ID]; ok {
		t.Error("expected record to be removed")
	}
}

func TestHandler_Delete_JSON(t *testing.T) {
	h, fx, e := newTestHandler()
	r, _ := fx.svc.Add(context.Background(), doctorA, fx.patientA, fullFields())

	rec := httptest.NewRecorder()
	c := e.NewContext(asCaller(httptest.NewRequest(http.MethodDelete, "/", nil), doctorA), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group(""))

	want := map[string]bool{
		"GET:/patients/:id/records":  false,
		"POST:/patients/:id/records": false,
		"GET:/records/:id":           false,
		"PUT:/records/:id":           false,
		"POST:/records/:id":          false,
		"DELETE:/records/:id":        false,
		"POST:/records/:id/delete":   false,
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
