package emergency

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalink/vitalink/internal/platform/auth"
	"github.com/vitalink/vitalink/pkg/pagination"
)

// finalizeTimeout bounds the background consent/dispatch flow after the
// trigger response has already been returned.
const finalizeTimeout = 2 * time.Minute

type Handler struct {
	ctrl *Controller
}

func NewHandler(ctrl *Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleCaregiver))
	g.POST("/emergencies", h.Trigger)
	g.GET("/patients/:id/emergencies", h.History)
	g.GET("/patients/:id/emergencies/:eventId", h.Get)
	g.GET("/patients/:id/emergencies/:eventId/notifications", h.Notifications)
	g.PUT("/patients/:id/emergencies/:eventId/status", h.UpdateStatus)
}

type triggerRequest struct {
	PatientID string `json:"patient_id"`
}

// Trigger records the emergency and returns immediately; consent and
// notification dispatch continue in the background.
func (h *Handler) Trigger(c echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		patientID = uuid.Nil
	}

	triggeredBy := auth.UserIDFromContext(c.Request().Context())
	if triggeredBy == "" {
		triggeredBy = "unknown"
	}

	result := h.ctrl.TriggerEmergency(c.Request().Context(), patientID, triggeredBy)
	if !result.Success {
		status := http.StatusBadRequest
		if result.Code == CodeDatabaseError || result.Code == CodeUnknownError {
			status = http.StatusInternalServerError
		}
		return c.JSON(status, result)
	}

	go func(eventID, patientID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		h.ctrl.Finalize(ctx, eventID, patientID)
	}(result.EventID, patientID)

	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.ctrl.GetEmergencyHistory(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list emergency events")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	event, err := h.ctrl.GetEmergencyEvent(c.Request().Context(), eventID, patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "emergency event not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get emergency event")
	}
	return c.JSON(http.StatusOK, event)
}

func (h *Handler) Notifications(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	// Scope check before exposing notification rows.
	if _, err := h.ctrl.GetEmergencyEvent(c.Request().Context(), eventID, patientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "emergency event not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get emergency event")
	}

	items, err := h.ctrl.GetNotifications(c.Request().Context(), eventID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list notifications")
	}
	return c.JSON(http.StatusOK, items)
}

type statusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// UpdateStatus applies an explicit terminal-status correction.
func (h *Handler) UpdateStatus(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status != StatusSent && req.Status != StatusFailed {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be sent or failed")
	}

	if _, err := h.ctrl.GetEmergencyEvent(c.Request().Context(), eventID, patientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "emergency event not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get emergency event")
	}

	h.ctrl.UpdateEmergencyStatus(c.Request().Context(), eventID, req.Status, req.Notes)

	event, err := h.ctrl.GetEmergencyEvent(c.Request().Context(), eventID, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get emergency event")
	}
	return c.JSON(http.StatusOK, event)
}
