package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/auth"
	"github.com/ehr/phr/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient endpoints. They are keyed by the
// authenticated user rather than by an active patient, except /me.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RoleUser))
	g.GET("", h.ListPatients)
	g.POST("", h.CreatePatient)
	g.GET("/me", h.GetActivePatient, Scope(h.svc))
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.PATCH("/:id", h.UpdatePatient)
	g.DELETE("/:id", h.DeletePatient)
}

func currentUser(c echo.Context) (string, error) {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return "", apperr.Unauthorized("authentication required")
	}
	return userID, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// GetActivePatient returns the patient the request is scoped to.
func (h *Handler) GetActivePatient(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	patientID, err := auth.ScopedPatient(ctx)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(ctx, userID, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPatients(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	userID, err := currentUser(c)
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
	p, err := h.svc.UpdatePatient(c.Request().Context(), userID, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := httpx.PathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, httpx.Message{Message: "patient deleted"})
}
