package record

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:id/records", h.ListForPatient)
	g.POST("/patients/:id/records", h.Add)
	g.GET("/records/:id", h.Get)
	g.PUT("/records/:id", h.Edit)
	g.POST("/records/:id", h.Edit)
	g.DELETE("/records/:id", h.Delete)
	g.POST("/records/:id/delete", h.Delete)
}

func recordsPath(patientID uuid.UUID) string {
	return "/patients/" + patientID.String() + "/records"
}

// bindFields reads a record submission. Form posts only set the fields
// present in the body so absent and empty inputs stay distinguishable.
func bindFields(c echo.Context) (Fields, error) {
	var f Fields
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ctype, echo.MIMEApplicationForm) && !strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		if err := c.Bind(&f); err != nil {
			return Fields{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		return f, nil
	}

	form, err := c.FormParams()
	if err != nil {
		return Fields{}, echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	for name, dst := range map[string]**string{
		"medications":    &f.Medications,
		"allergies":      &f.Allergies,
		"vital_signs":    &f.VitalSigns,
		"diagnosis":      &f.Diagnosis,
		"treatment_plan": &f.TreatmentPlan,
		"treatment":      &f.Treatment,
		"description":    &f.Description,
	} {
		if vs, ok := form[name]; ok && len(vs) > 0 {
			v := vs[0]
			*dst = &v
		}
	}
	return f, nil
}

func (h *Handler) ListForPatient(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := patient.ParseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListForPatient(c.Request().Context(), caller, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Add(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := patient.ParseID(c, "id")
	if err != nil {
		return err
	}
	f, err := bindFields(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Add(c.Request().Context(), caller, patientID, f)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, recordsPath(rec.PatientID))
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := patient.ParseID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.svc.GetOwnedRecord(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Edit(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := patient.ParseID(c, "id")
	if err != nil {
		return err
	}
	f, err := bindFields(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Edit(c.Request().Context(), caller, id, f)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, recordsPath(rec.PatientID))
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := patient.ParseID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.svc.Delete(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, recordsPath(rec.PatientID))
	}
	return c.NoContent(http.StatusNoContent)
}
