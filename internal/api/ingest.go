package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/neovance/neovance-go/internal/datastore/entities"
	"github.com/neovance/neovance-go/internal/datastore/repository"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/vitals"
)

// ingestRequest is the POST /ingest body.
type ingestRequest struct {
	SubjectID string             `json:"subject_id"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// IngestReading scores one reading and reports the assessment and whether an
// alert was opened.
func (c *Controller) IngestReading(ctx echo.Context) error {
	var req ingestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	reading := &vitals.Reading{
		SubjectID: req.SubjectID,
		Timestamp: req.Timestamp,
		Values:    req.Values,
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	if err := reading.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := c.monitor.Ingest(reading)

	response := map[string]any{
		"assessment":    result.Assessment,
		"alert_created": result.AlertCreated,
		"degraded":      result.Degraded,
	}
	if result.Alert != nil {
		response["alert"] = result.Alert
	}
	return ctx.JSON(http.StatusOK, response)
}

// UpsertSubject creates or updates a subject's demographic record.
func (c *Controller) UpsertSubject(ctx echo.Context) error {
	if c.subjectRepo == nil {
		return c.requirePersistence(ctx)
	}

	var subject entities.Subject
	if err := ctx.Bind(&subject); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	subject.SubjectID = ctx.Param("id")
	if subject.SubjectID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Subject id is required"})
	}

	if err := c.subjectRepo.Upsert(ctx.Request().Context(), &subject); err != nil {
		c.log.Error("failed to upsert subject", logger.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save subject"})
	}
	return ctx.JSON(http.StatusOK, subject)
}

// ListSubjects returns all registered subjects.
func (c *Controller) ListSubjects(ctx echo.Context) error {
	if c.subjectRepo == nil {
		return c.requirePersistence(ctx)
	}

	subjects, err := c.subjectRepo.List(ctx.Request().Context())
	if err != nil {
		c.log.Error("failed to list subjects", logger.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list subjects"})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"subjects": subjects,
		"count":    len(subjects),
	})
}

// LatestAssessment returns the most recent assessment for a subject, served
// from the in-memory cache with a persistence fallback.
func (c *Controller) LatestAssessment(ctx echo.Context) error {
	subjectID := ctx.Param("id")

	if assessment, ok := c.monitor.Latest(subjectID); ok {
		return ctx.JSON(http.StatusOK, map[string]any{"assessment": assessment, "cached": true})
	}

	if c.observationRepo != nil {
		obs, err := c.observationRepo.Latest(ctx.Request().Context(), subjectID)
		if err != nil {
			c.log.Error("failed to load latest observation", logger.Error(err))
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load latest observation"})
		}
		if obs != nil {
			return ctx.JSON(http.StatusOK, map[string]any{"observation": obs, "cached": false})
		}
	}
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": "No assessment for subject"})
}

// ListObservations returns the scored-reading history for a subject.
func (c *Controller) ListObservations(ctx echo.Context) error {
	if c.observationRepo == nil {
		return c.requirePersistence(ctx)
	}

	filter := repository.ObservationFilter{
		SubjectID: ctx.Param("id"),
		Tier:      ctx.QueryParam("tier"),
		Limit:     maxListLimit,
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 || limit > maxListLimit {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		filter.Limit = limit
	}
	if sinceParam := ctx.QueryParam("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid since timestamp"})
		}
		filter.Since = since
	}

	observations, err := c.observationRepo.List(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list observations", logger.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list observations"})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"observations": observations,
		"count":        len(observations),
	})
}
