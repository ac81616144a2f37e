// Package monitor wires the ingestion pipeline: rolling statistics, risk
// scoring, and alert creation, with per-subject serialization.
package monitor

import (
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/observability/metrics"
	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

// Alert trigger sources, recorded in metrics.
const (
	sourceFormula   = "formula"
	sourcePredictor = "predictor"
)

// PredictFunc is the optional external classifier, injected as an
// already-computed probability source. The core never fetches features or
// runs inference itself.
type PredictFunc func(subjectID string, values map[string]float64) (float64, error)

// Config parameterizes the dispatcher.
type Config struct {
	// AlertThreshold is the predictor probability above which an alert is
	// raised.
	AlertThreshold float64
	// OnsetWindowHours is stamped on alerts created by this dispatcher.
	OnsetWindowHours float64
	// LatestTTL bounds how long the latest assessment per subject is served
	// from cache.
	LatestTTL time.Duration
}

// Result is the outcome of one ingest call.
type Result struct {
	Assessment *risk.Assessment
	// AlertCreated tells the caller whether to notify clinicians.
	AlertCreated bool
	Alert        *alerting.Alert
	// Degraded marks a reading scored against stale statistics after an
	// out-of-order rejection.
	Degraded bool
}

// Monitor is the ingestion dispatcher. Readings for the same subject are
// serialized under a per-subject lock so each reading folds into its own
// baseline before being judged against it; different subjects proceed fully
// in parallel.
type Monitor struct {
	cfg     Config
	stats   *vitals.Engine
	scorer  *risk.Scorer
	alerts  *alerting.Manager
	predict PredictFunc
	bus     *EventBus
	log     logger.Logger

	latest *gocache.Cache

	mu       sync.Mutex
	subjects map[string]*sync.Mutex
}

// New creates a Monitor. predict may be nil for formula-only alerting; bus
// may be nil when no downstream consumers exist (tests).
func New(cfg Config, stats *vitals.Engine, scorer *risk.Scorer, alerts *alerting.Manager,
	predict PredictFunc, bus *EventBus, log logger.Logger) *Monitor {
	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		stats:    stats,
		scorer:   scorer,
		alerts:   alerts,
		predict:  predict,
		bus:      bus,
		log:      log,
		latest:   gocache.New(ttl, 2*ttl),
		subjects: make(map[string]*sync.Mutex),
	}
}

// Ingest runs one reading through the pipeline: update rolling statistics,
// score against the just-updated baseline, and open an alert when warranted.
// Out-of-order readings are not rejected outright: the stale statistics
// already in the window still produce an assessment, flagged as degraded.
func (m *Monitor) Ingest(reading *vitals.Reading) Result {
	start := time.Now()
	lock := m.subjectLock(reading.SubjectID)
	lock.Lock()

	degraded := false
	for vital, value := range reading.Values {
		if err := m.stats.Update(reading.SubjectID, vital, reading.Timestamp, value); err != nil {
			if errors.Is(err, vitals.ErrOutOfOrderReading) {
				degraded = true
				metrics.OutOfOrderReadings.Inc()
				m.log.Warn("out-of-order reading, scoring against stale statistics",
					logger.String("subject_id", reading.SubjectID),
					logger.String("vital", vital),
					logger.Time("timestamp", reading.Timestamp))
				continue
			}
			m.log.Error("statistics update failed",
				logger.String("subject_id", reading.SubjectID),
				logger.String("vital", vital),
				logger.Error(err))
		}
	}

	assessment := m.scorer.Score(reading.SubjectID, reading.Values, reading.Timestamp)
	lock.Unlock()

	metrics.ReadingsIngested.Inc()
	metrics.AssessmentsByTier.WithLabelValues(string(assessment.Tier)).Inc()

	result := Result{Assessment: assessment, Degraded: degraded}
	m.maybeAlert(reading, assessment, &result)

	m.latest.SetDefault(reading.SubjectID, assessment)

	if m.bus != nil {
		m.bus.Publish(&AssessmentEvent{
			Reading:      *reading,
			Assessment:   assessment,
			Alert:        result.Alert,
			AlertCreated: result.AlertCreated,
			Degraded:     degraded,
		})
	}

	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	return result
}

// maybeAlert applies the alert trigger: an externally supplied predictor
// probability above the threshold, or a CRITICAL formula tier. Alerts created
// by the formula path record probability 1.0, i.e. the deterministic rule
// fired; predictor-backed alerts record the model's probability verbatim.
func (m *Monitor) maybeAlert(reading *vitals.Reading, assessment *risk.Assessment, result *Result) {
	probability := 1.0
	source := sourceFormula
	trigger := assessment.Tier == risk.TierCritical

	if m.predict != nil {
		p, err := m.predict(reading.SubjectID, reading.Values)
		if err != nil {
			m.log.Warn("predictor call failed, falling back to formula trigger",
				logger.String("subject_id", reading.SubjectID),
				logger.Error(err))
		} else {
			probability = p
			source = sourcePredictor
			trigger = trigger || p > m.cfg.AlertThreshold
		}
	}

	if !trigger {
		return
	}

	alert, err := m.alerts.CreateAlert(reading.SubjectID, probability, m.cfg.OnsetWindowHours)
	if err != nil {
		if errors.Is(err, alerting.ErrAlertAlreadyOpen) {
			m.log.Debug("alert suppressed, subject already has an open alert",
				logger.String("subject_id", reading.SubjectID),
				logger.Uint64("open_alert_id", alert.ID))
			return
		}
		m.log.Error("alert creation failed",
			logger.String("subject_id", reading.SubjectID),
			logger.Error(err))
		return
	}

	metrics.AlertsCreated.WithLabelValues(source).Inc()
	result.Alert = &alert
	result.AlertCreated = true
}

// Latest returns the most recent assessment for a subject from the TTL
// cache, if one exists.
func (m *Monitor) Latest(subjectID string) (*risk.Assessment, bool) {
	v, ok := m.latest.Get(subjectID)
	if !ok {
		return nil, false
	}
	assessment, ok := v.(*risk.Assessment)
	return assessment, ok
}

// subjectLock returns the serialization lock for a subject, creating it on
// first use. Locks are never removed; the per-subject footprint is one mutex.
func (m *Monitor) subjectLock(subjectID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.subjects[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		m.subjects[subjectID] = lock
	}
	return lock
}
