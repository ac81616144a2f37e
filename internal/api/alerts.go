package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/logger"
)

// createAlertRequest is the POST /alerts body, used by an external prediction
// service to raise an alert directly.
type createAlertRequest struct {
	SubjectID        string   `json:"subject_id"`
	RiskProbability  *float64 `json:"risk_probability"`
	OnsetWindowHours float64  `json:"onset_window_hours"`
}

// actionRequest is the POST /alerts/:id/action body.
type actionRequest struct {
	ClinicianID string `json:"clinician_id"`
	ActionType  string `json:"action_type"`
	Detail      string `json:"detail"`
}

// outcomeRequest is the POST /alerts/:id/outcome body.
type outcomeRequest struct {
	SepsisConfirmed *bool `json:"sepsis_confirmed"`
}

// ListAlerts returns alerts in the requested status, defaulting to the
// doctor's pending queue.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	status := alerting.StatusPendingDoctorAction
	if statusParam := ctx.QueryParam("status"); statusParam != "" {
		parsed, err := alerting.ParseStatus(statusParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		}
		status = parsed
	}

	alerts := c.alerts.AlertsByStatus(status)
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// CreateAlert raises an alert from an externally computed probability. The
// open-alert policy applies exactly as it does on the ingest path; under the
// reject policy a duplicate returns 409 with the already-open alert.
func (c *Controller) CreateAlert(ctx echo.Context) error {
	var req createAlertRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.SubjectID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "subject_id is required"})
	}
	if req.RiskProbability == nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "risk_probability is required"})
	}

	alert, err := c.alerts.CreateAlert(req.SubjectID, *req.RiskProbability, req.OnsetWindowHours)
	if err != nil {
		if errors.Is(err, alerting.ErrAlertAlreadyOpen) {
			return ctx.JSON(http.StatusConflict, map[string]any{
				"error": err.Error(),
				"alert": alert,
			})
		}
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusCreated, alert)
}

// GetAlert returns one alert by id.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseAlertID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert id"})
	}

	alert, err := c.alerts.GetAlert(id)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
	}
	return ctx.JSON(http.StatusOK, alert)
}

// RecordAction applies a clinician's action to a pending alert. A request
// against an alert past the pending state returns 409 with the current state,
// so retries and lost races are visible, not double-applied.
func (c *Controller) RecordAction(ctx echo.Context) error {
	id, err := parseAlertID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert id"})
	}

	var req actionRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	alert, err := c.alerts.RecordAction(id, req.ClinicianID, req.ActionType, req.Detail)
	if err != nil {
		return c.alertTransitionError(ctx, alert, err)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// RecordOutcome logs the confirmed outcome for an acted-on alert and closes
// the episode.
func (c *Controller) RecordOutcome(ctx echo.Context) error {
	id, err := parseAlertID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert id"})
	}

	var req outcomeRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.SepsisConfirmed == nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "sepsis_confirmed is required"})
	}

	alert, err := c.alerts.RecordOutcome(id, *req.SepsisConfirmed)
	if err != nil {
		return c.alertTransitionError(ctx, alert, err)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// TrainingData exports all completed human-in-the-loop episodes.
func (c *Controller) TrainingData(ctx echo.Context) error {
	if c.alertRepo == nil {
		return c.requirePersistence(ctx)
	}

	examples, err := c.alertRepo.TrainingData(ctx.Request().Context())
	if err != nil {
		c.log.Error("failed to export training data", logger.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to export training data"})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"examples": examples,
		"count":    len(examples),
	})
}

func (c *Controller) alertTransitionError(ctx echo.Context, alert alerting.Alert, err error) error {
	switch {
	case errors.Is(err, alerting.ErrUnknownAlert):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
	case errors.Is(err, alerting.ErrInvalidTransition):
		return ctx.JSON(http.StatusConflict, map[string]any{
			"error": err.Error(),
			"alert": alert,
		})
	default:
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func parseAlertID(ctx echo.Context) (uint64, error) {
	return strconv.ParseUint(ctx.Param("id"), 10, 64)
}
