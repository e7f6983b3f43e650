package consent

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalink/vitalink/internal/platform/auth"
	"github.com/vitalink/vitalink/pkg/pagination"
)

type Handler struct {
	mgr    *Manager
	broker *DeviceBroker
}

// NewHandler wires the consent audit endpoints and, when broker is non-nil,
// the device answer endpoints that resolve pending location prompts.
func NewHandler(mgr *Manager, broker *DeviceBroker) *Handler {
	return &Handler{mgr: mgr, broker: broker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleCaregiver)

	g := api.Group("", role)
	g.GET("/patients/:id/consents", h.History)

	if h.broker != nil {
		device := api.Group("", auth.RequireRole(auth.RolePatient))
		device.POST("/consents/location/:id/grant", h.GrantLocation)
		device.POST("/consents/location/:id/deny", h.DenyLocation)
	}
}

func (h *Handler) History(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.mgr.History(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GrantLocation(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var coords Coordinates
	if err := c.Bind(&coords); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	delivered := h.broker.Grant(pid, coords)
	return c.JSON(http.StatusOK, map[string]bool{"delivered": delivered})
}

func (h *Handler) DenyLocation(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	delivered := h.broker.Deny(pid)
	return c.JSON(http.StatusOK, map[string]bool{"delivered": delivered})
}
