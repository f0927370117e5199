package treatment

import (
	"net/http"

	"github.com/google/uuid"
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

// RegisterRoutes mounts the treatment and treatment-medication endpoints on
// a patient-scoped group, including the medication-side listing.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RoleUser)

	g := api.Group("/treatments", role)
	g.GET("", h.ListTreatments)
	g.POST("", h.CreateTreatment)
	g.GET("/:id", h.GetTreatment)
	g.PUT("/:id", h.UpdateTreatment)
	g.PATCH("/:id", h.UpdateTreatment)
	g.DELETE("/:id", h.DeleteTreatment)

	g.GET("/:id/medications", h.ListLinks)
	g.POST("/:id/medications", h.CreateLink)
	g.POST("/:id/medications/bulk", h.BulkCreateLinks)
	g.GET("/:id/medications/:link_id", h.GetLink)
	g.PUT("/:id/medications/:link_id", h.UpdateLink)
	g.PATCH("/:id/medications/:link_id", h.UpdateLink)
	g.DELETE("/:id/medications/:link_id", h.DeleteLink)

	api.GET("/medications/:id/treatments", h.ListLinksByMedication, role)
}

func (h *Handler) CreateTreatment(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	t, err := h.svc.CreateTreatment(ctx, patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTreatment(ctx, patientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTreatments(c echo.Context) error {
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
	if s := c.QueryParam("condition_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return apperr.BadRequest("invalid condition_id")
		}
		f.ConditionID = &id
	}
	items, total, err := h.svc.ListTreatments(ctx, patientID, f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Treatment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Params))
}

func (h *Handler) UpdateTreatment(c echo.Context) error {
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
	t, err := h.svc.UpdateTreatment(ctx, patientID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatment(ctx, patientID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "treatment deleted"})
}

// -- Treatment medications --

func (h *Handler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	links, err := h.svc.ListLinksByTreatment(ctx, patientID, treatmentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, links)
}

func (h *Handler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	var req CreateLinkRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	link, err := h.svc.CreateLink(ctx, patientID, treatmentID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

func (h *Handler) BulkCreateLinks(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	var req BulkLinkRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkCreateLinks(ctx, patientID, treatmentID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := httpx.PathUUID(c, "link_id")
	if err != nil {
		return err
	}
	link, err := h.svc.GetLink(ctx, patientID, treatmentID, linkID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

func (h *Handler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := httpx.PathUUID(c, "link_id")
	if err != nil {
		return err
	}
	var req UpdateLinkRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	link, err := h.svc.UpdateLink(ctx, patientID, treatmentID, linkID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

func (h *Handler) DeleteLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	treatmentID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := httpx.PathUUID(c, "link_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLink(ctx, patientID, treatmentID, linkID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "medication unlinked from treatment"})
}

func (h *Handler) ListLinksByMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	medicationID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	links, err := h.svc.ListLinksByMedication(ctx, patientID, medicationID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, links)
}
