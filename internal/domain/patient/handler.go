package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/middleware"
)

// listPath is where browsers land after a patient is added, edited or removed.
const listPath = "/patients"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.List)
	g.POST("/patients", h.Add)
	g.GET("/patients/new", h.Form)
	g.GET("/patients/:id", h.Get)
	g.PUT("/patients/:id", h.Edit)
	g.POST("/patients/:id", h.Edit)
	g.DELETE("/patients/:id", h.Delete)

	// Form-post routes kept for browser clients.
	g.GET("/edit_patient/:id", h.Get)
	g.POST("/edit_patient/:id", h.Edit)
	g.POST("/delete", h.DeleteForm)
}

// ParseID reads a resource id path parameter. Malformed ids name no
// resource, so they share the not-found error.
func ParseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.ErrNotFoundOrUnauthorized
	}
	return id, nil
}

// FormSpec describes the add/edit patient form.
type FormSpec struct {
	Genders    []string `json:"genders"`
	BloodTypes []string `json:"blood_types"`
	DateLayout string   `json:"birth_date_format"`
}

func (h *Handler) Form(c echo.Context) error {
	return c.JSON(http.StatusOK, FormSpec{Genders: Genders, BloodTypes: BloodTypes, DateLayout: "YYYY-MM-DD"})
}

func (h *Handler) List(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), caller)
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
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Add(c.Request().Context(), caller, in)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, listPath)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetOwned(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Edit(c echo.Context) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Edit(c.Request().Context(), caller, id, in)
	if err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, listPath)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	return h.delete(c, c.Param("id"))
}

// DeleteForm removes the patient named by the "id" form field.
func (h *Handler) DeleteForm(c echo.Context) error {
	return h.delete(c, c.FormValue("id"))
}

func (h *Handler) delete(c echo.Context, rawID string) error {
	caller, err := auth.RequireAuthenticated(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return apperr.ErrNotFoundOrUnauthorized
	}
	if err := h.svc.Delete(c.Request().Context(), caller, id); err != nil {
		return err
	}
	if middleware.WantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, listPath)
	}
	return c.NoContent(http.StatusNoContent)
}
