// Package server assembles the full monitoring stack from configuration:
// statistics engine, scorer, alert manager, persistence, notifications, live
// feed, and the HTTP and MQTT surfaces.
package server

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/api"
	"github.com/neovance/neovance-go/internal/conf"
	"github.com/neovance/neovance-go/internal/datastore"
	"github.com/neovance/neovance-go/internal/datastore/entities"
	"github.com/neovance/neovance-go/internal/datastore/repository"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/monitor"
	"github.com/neovance/neovance-go/internal/mqtt"
	"github.com/neovance/neovance-go/internal/notification"
	"github.com/neovance/neovance-go/internal/observability/metrics"
	"github.com/neovance/neovance-go/internal/predictor"
	"github.com/neovance/neovance-go/internal/realtime"
	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

// persistTimeout bounds each async database write triggered by an event.
const persistTimeout = 5 * time.Second

// Server owns the assembled components and their lifecycle.
type Server struct {
	settings *conf.Settings
	log      logger.Logger

	db            *gorm.DB
	monitor       *monitor.Monitor
	alerts        *alerting.Manager
	notifications *notification.Service
	bus           *monitor.EventBus
	hub           *realtime.Hub
	bridge        *mqtt.Bridge
	controller    *api.Controller

	alertRepo       repository.AlertRepository
	observationRepo repository.ObservationRepository
}

// New builds the full stack. Nothing is started yet; call Run.
func New(settings *conf.Settings, log logger.Logger) (*Server, error) {
	s := &Server{settings: settings, log: log}

	db, err := datastore.Open(databaseConfig(settings.Database))
	if err != nil {
		return nil, err
	}
	s.db = db
	s.alertRepo = repository.NewAlertRepository(db)
	s.observationRepo = repository.NewObservationRepository(db)

	engine := vitals.NewEngine(vitals.Config{
		Window:     settings.Monitor.Window.Std(),
		MinSamples: settings.Monitor.MinSamples,
		Tolerance:  settings.Monitor.OutOfOrderTolerance.Std(),
		Defaults:   vitalDefaults(settings.Risk.Vitals),
	})
	scorer := risk.NewScorer(riskConfig(settings.Risk), engine)

	policy, err := alerting.ParseOpenAlertPolicy(settings.Alerting.OpenAlertPolicy)
	if err != nil {
		return nil, err
	}
	s.alerts = alerting.NewManager(alerting.Config{
		RiskThreshold: settings.Alerting.RiskThreshold,
		Policy:        policy,
	}, log)

	notification.Initialize(notification.ServiceConfig{}, log)
	s.notifications = notification.GetService()
	s.hub = realtime.NewHub(log)
	s.bus = monitor.NewEventBus()
	s.bus.Subscribe(s.handleAssessment)
	s.alerts.OnCreated(s.handleAlertCreated)
	s.alerts.OnTransition(s.handleAlertTransition)

	var predict monitor.PredictFunc
	if settings.Predictor.Enabled {
		client := predictor.NewClient(predictor.Config{
			BaseURL: settings.Predictor.URL,
			Timeout: settings.Predictor.Timeout.Std(),
		})
		predict = client.AsPredictFunc()
	}

	s.monitor = monitor.New(monitor.Config{
		AlertThreshold:   settings.Alerting.RiskThreshold,
		OnsetWindowHours: settings.Alerting.DefaultOnsetWindowHours,
		LatestTTL:        settings.Realtime.LatestTTL.Std(),
	}, engine, scorer, s.alerts, predict, s.bus, log)

	if settings.MQTT.Enabled {
		s.bridge = mqtt.NewBridge(mqtt.Config{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
		}, func(reading *vitals.Reading) {
			s.monitor.Ingest(reading)
		}, log)
	}

	s.controller = api.New(api.Options{
		Monitor:         s.monitor,
		Alerts:          s.alerts,
		Notifications:   s.notifications,
		Hub:             s.hub,
		SubjectRepo:     repository.NewSubjectRepository(db),
		ObservationRepo: s.observationRepo,
		AlertRepo:       s.alertRepo,
	}, log)

	return s, nil
}

// Run starts the live feed, the MQTT bridge, and the HTTP server, then blocks
// until the context is canceled and everything has shut down.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go s.hub.Run(hubCtx)

	if s.bridge != nil {
		if err := s.bridge.Start(); err != nil {
			return err
		}
		defer s.bridge.Stop()
	}
	defer s.bus.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening",
			logger.String("address", s.settings.WebServer.Address))
		errCh <- s.controller.Echo.Start(s.settings.WebServer.Address)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.controller.Echo.Shutdown(shutdownCtx)
}

// handleAssessment persists the scored reading and pushes it to the live feed.
// Runs on the event bus worker, off the ingest hot path.
func (s *Server) handleAssessment(event *monitor.AssessmentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	obs := entities.NewObservation(&event.Reading, event.Assessment, event.Degraded)
	if err := s.observationRepo.Insert(ctx, obs); err != nil {
		s.log.Error("failed to persist observation",
			logger.String("subject_id", event.Reading.SubjectID),
			logger.Error(err))
	}

	s.hub.Broadcast("assessment", event)
}

func (s *Server) handleAlertCreated(alert alerting.Alert) {
	s.persistAlert(alert)
	s.notifications.NotifyAlertCreated(alert)
	s.hub.Broadcast("alert_created", alert)
}

func (s *Server) handleAlertTransition(alert alerting.Alert) {
	metrics.AlertTransitions.WithLabelValues(string(alert.Status)).Inc()
	s.persistAlert(alert)
	s.notifications.NotifyTransition(alert)
	s.hub.Broadcast("alert_updated", alert)
}

func (s *Server) persistAlert(alert alerting.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.alertRepo.Save(ctx, entities.NewAlertRecord(alert)); err != nil {
		s.log.Error("failed to persist alert record",
			logger.Uint64("alert_id", alert.ID),
			logger.Error(err))
	}
}

func databaseConfig(db conf.DatabaseSettings) datastore.Config {
	cfg := datastore.Config{Dialect: db.Dialect, DSN: db.DSN}
	if db.Dialect == datastore.DialectSQLite {
		cfg.DSN = db.Path
	}
	return cfg
}

func vitalDefaults(params map[string]conf.VitalParams) map[string]vitals.Defaults {
	defaults := make(map[string]vitals.Defaults, len(params))
	for name, p := range params {
		defaults[name] = vitals.Defaults{Mean: p.Baseline, StdDev: p.DefaultSigma}
	}
	return defaults
}

func riskConfig(settings conf.RiskSettings) risk.Config {
	cfg := risk.Config{
		Vitals:            make(map[string]risk.VitalParams, len(settings.Vitals)),
		WarningThreshold:  settings.WarningThreshold,
		CriticalThreshold: settings.CriticalThreshold,
	}
	for name, p := range settings.Vitals {
		cfg.Vitals[name] = risk.VitalParams{
			Baseline: p.Baseline,
			Weight:   p.Weight,
			Exponent: p.Exponent,
		}
	}
	return cfg
}
