package condition

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

// RegisterRoutes mounts the condition and condition-medication endpoints on a
// patient-scoped group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/conditions", auth.RequireRole(auth.RoleUser))
	g.GET("", h.ListConditions)
	g.POST("", h.CreateCondition)
	g.GET("/:id", h.GetCondition)
	g.PUT("/:id", h.UpdateCondition)
	g.PATCH("/:id", h.UpdateCondition)
	g.DELETE("/:id", h.DeleteCondition)

	g.GET("/:id/medications", h.ListLinks)
	g.POST("/:id/medications", h.CreateLink)
	g.POST("/:id/medications/bulk", h.BulkCreateLinks)
	g.PUT("/:id/medications/:link_id", h.UpdateLink)
	g.PATCH("/:id/medications/:link_id", h.UpdateLink)
	g.DELETE("/:id/medications/:link_id", h.DeleteLink)
	g.GET("/medication/:medication_id/conditions", h.ListLinksByMedication)
}

func (h *Handler) CreateCondition(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	cond, err := h.svc.CreateCondition(ctx, patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cond)
}

func (h *Handler) GetCondition(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	cond, err := h.svc.GetCondition(ctx, patientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) ListConditions(c echo.Context) error {
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
	items, total, err := h.svc.ListConditions(ctx, patientID, f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Condition{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Params))
}

func (h *Handler) UpdateCondition(c echo.Context) error {
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
	cond, err := h.svc.UpdateCondition(ctx, patientID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) DeleteCondition(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCondition(ctx, patientID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "condition deleted"})
}

// -- Condition medications --

func (h *Handler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	conditionID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	links, err := h.svc.ListLinksByCondition(ctx, patientID, conditionID)
	if err != nil {
		return err
	}
	if links == nil {
		links = []*LinkView{}
	}
	return c.JSON(http.StatusOK, links)
}

func (h *Handler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	conditionID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	var req CreateLinkRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	link, err := h.svc.CreateLink(ctx, patientID, conditionID, req)
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
	conditionID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	var req BulkLinkRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.BulkCreateLinks(ctx, patientID, conditionID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	conditionID, err := httpx.PathUUID(c, "id")
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
	link, err := h.svc.UpdateLink(ctx, patientID, conditionID, linkID, req)
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
	conditionID, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	linkID, err := httpx.PathUUID(c, "link_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLink(ctx, patientID, conditionID, linkID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "medication unlinked from condition"})
}

func (h *Handler) ListLinksByMedication(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	medicationID, err := httpx.PathUUID(c, "medication_id")
	if err != nil {
		return err
	}
	links, err := h.svc.ListLinksByMedication(ctx, patientID, medicationID)
	if err != nil {
		return err
	}
	if links == nil {
		links = []*LinkView{}
	}
	return c.JSON(http.StatusOK, links)
}
