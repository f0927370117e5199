package medication

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/auth"
	"github.com/ehr/phr/internal/platform/httpx"
	"github.com/ehr/phr/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the medication endpoints on a patient-scoped group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/medications", auth.RequireRole(auth.RoleUser))
	g.GET("", h.ListMedications)
	g.POST("", h.CreateMedication)
	g.GET("/:id", h.GetMedication)
	g.PUT("/:id", h.UpdateMedication)
	g.PATCH("/:id", h.UpdateMedication)
	g.DELETE("/:id", h.DeleteMedication)
}

func (h *Handler) CreateMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.CreateMedication(ctx, patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(ctx, patientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	f := ListFilter{Params: pagination.FromContext(c)}
	if s := c.QueryParam("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return apperr.Invalid("status", err.Error())
		}
		f.Status = st
	}
	items, total, err := h.svc.ListMedications(ctx, patientID, f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Medication{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Params))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.UpdateMedication(ctx, patientID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(ctx, patientID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "medication deleted"})
}
