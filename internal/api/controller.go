// Package api exposes the HTTP surface: reading ingestion, alert lifecycle,
// subject queries, notifications, and the live websocket feed.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/datastore/repository"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/monitor"
	"github.com/neovance/neovance-go/internal/notification"
	"github.com/neovance/neovance-go/internal/realtime"
)

const maxListLimit = 200

// Controller wires the HTTP routes to the engine and repositories. Repository
// fields may be nil when persistence is disabled; the corresponding endpoints
// then return 503.
type Controller struct {
	Echo *echo.Echo
	log  logger.Logger

	monitor       *monitor.Monitor
	alerts        *alerting.Manager
	notifications *notification.Service
	hub           *realtime.Hub

	subjectRepo     repository.SubjectRepository
	observationRepo repository.ObservationRepository
	alertRepo       repository.AlertRepository
}

// Options carries the controller's dependencies.
type Options struct {
	Monitor       *monitor.Monitor
	Alerts        *alerting.Manager
	Notifications *notification.Service
	Hub           *realtime.Hub

	SubjectRepo     repository.SubjectRepository
	ObservationRepo repository.ObservationRepository
	AlertRepo       repository.AlertRepository
}

// New creates the controller and registers all routes.
func New(opts Options, log logger.Logger) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:            e,
		log:             log,
		monitor:         opts.Monitor,
		alerts:          opts.Alerts,
		notifications:   opts.Notifications,
		hub:             opts.Hub,
		subjectRepo:     opts.SubjectRepo,
		observationRepo: opts.ObservationRepo,
		alertRepo:       opts.AlertRepo,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/healthz", c.Health)
	c.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if c.hub != nil {
		c.Echo.GET("/ws/live", echo.WrapHandler(c.hub))
	}

	v1 := c.Echo.Group("/api/v1")
	v1.POST("/ingest", c.IngestReading)

	v1.GET("/subjects", c.ListSubjects)
	v1.PUT("/subjects/:id", c.UpsertSubject)
	v1.GET("/subjects/:id/latest", c.LatestAssessment)
	v1.GET("/subjects/:id/observations", c.ListObservations)

	v1.POST("/alerts", c.CreateAlert)
	v1.GET("/alerts", c.ListAlerts)
	v1.GET("/alerts/:id", c.GetAlert)
	v1.POST("/alerts/:id/action", c.RecordAction)
	v1.POST("/alerts/:id/outcome", c.RecordOutcome)

	v1.GET("/hil/training-data", c.TrainingData)

	v1.GET("/notifications", c.ListNotifications)
	v1.POST("/notifications/:id/read", c.MarkNotificationRead)

	v1.GET("/stats", c.Stats)
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statsWindow is the trailing span summarized by the stats endpoint.
const statsWindow = 30 * time.Minute

// Stats returns an operational summary: the alert queue sizes and the tier
// distribution and score spread over the trailing stats window.
func (c *Controller) Stats(ctx echo.Context) error {
	stats := map[string]any{
		"alerts": map[string]int{
			"pending_doctor_action": len(c.alerts.AlertsByStatus(alerting.StatusPendingDoctorAction)),
			"action_taken":          len(c.alerts.AlertsByStatus(alerting.StatusActionTaken)),
			"outcome_logged":        len(c.alerts.AlertsByStatus(alerting.StatusOutcomeLogged)),
			"superseded":            len(c.alerts.AlertsByStatus(alerting.StatusSuperseded)),
		},
	}
	if c.notifications != nil {
		stats["unread_notifications"] = c.notifications.UnreadCount()
	}

	if c.observationRepo != nil {
		observations, err := c.observationRepo.List(ctx.Request().Context(),
			repository.ObservationFilter{Since: time.Now().UTC().Add(-statsWindow)})
		if err != nil {
			c.log.Error("failed to aggregate observations", logger.Error(err))
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to compute stats"})
		}

		tiers := map[string]int{}
		var minScore, maxScore, sum float64
		for i, obs := range observations {
			tiers[obs.Tier]++
			if i == 0 || obs.Score < minScore {
				minScore = obs.Score
			}
			if i == 0 || obs.Score > maxScore {
				maxScore = obs.Score
			}
			sum += obs.Score
		}
		window := map[string]any{
			"span_minutes": int(statsWindow.Minutes()),
			"readings":     len(observations),
			"tiers":        tiers,
		}
		if len(observations) > 0 {
			window["score_min"] = minScore
			window["score_max"] = maxScore
			window["score_avg"] = sum / float64(len(observations))
		}
		stats["window"] = window
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (c *Controller) requirePersistence(ctx echo.Context) error {
	return ctx.JSON(http.StatusServiceUnavailable,
		map[string]string{"error": "persistence is not enabled"})
}
