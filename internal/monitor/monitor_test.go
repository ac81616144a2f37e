package monitor

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

func testVitalDefaults() map[string]vitals.Defaults {
	return map[string]vitals.Defaults{
		vitals.VitalHeartRate:             {Mean: 145, StdDev: 15},
		vitals.VitalSpO2:                  {Mean: 95, StdDev: 2.5},
		vitals.VitalRespiratoryRate:       {Mean: 50, StdDev: 10},
		vitals.VitalTemperature:           {Mean: 37.0, StdDev: 0.5},
		vitals.VitalMeanArterialPressure: {Mean: 35, StdDev: 5},
	}
}

func testScorerConfig() risk.Config {
	return risk.Config{
		Vitals: map[string]risk.VitalParams{
			vitals.VitalHeartRate:            {Baseline: 145, Weight: 1.0, Exponent: 2},
			vitals.VitalSpO2:                 {Baseline: 95, Weight: 3.0, Exponent: 4},
			vitals.VitalRespiratoryRate:      {Baseline: 50, Weight: 1.5, Exponent: 2},
			vitals.VitalTemperature:          {Baseline: 37.0, Weight: 1.0, Exponent: 3},
			vitals.VitalMeanArterialPressure: {Baseline: 35, Weight: 2.0, Exponent: 2},
		},
		WarningThreshold:  10,
		CriticalThreshold: 20,
	}
}

// newTestMonitor builds a full pipeline with clinical defaults, an in-memory
// alert manager, and no event bus.
func newTestMonitor(t *testing.T, predict PredictFunc, bus *EventBus) *Monitor {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	engine := vitals.NewEngine(vitals.Config{
		Window:     10 * time.Minute,
		MinSamples: 5,
		Defaults:   testVitalDefaults(),
	})
	scorer := risk.NewScorer(testScorerConfig(), engine)
	alerts := alerting.NewManager(alerting.Config{RiskThreshold: 0.75, Policy: alerting.PolicyReject}, log)
	return New(Config{AlertThreshold: 0.75, OnsetWindowHours: 6}, engine, scorer, alerts, predict, bus, log)
}

func baselineReading(subject string, ts time.Time) *vitals.Reading {
	return &vitals.Reading{
		SubjectID: subject,
		Timestamp: ts,
		Values: map[string]float64{
			vitals.VitalHeartRate:            145,
			vitals.VitalSpO2:                 95,
			vitals.VitalRespiratoryRate:      50,
			vitals.VitalTemperature:          37.0,
			vitals.VitalMeanArterialPressure: 35,
		},
	}
}

func sepsisReading(subject string, ts time.Time) *vitals.Reading {
	return &vitals.Reading{
		SubjectID: subject,
		Timestamp: ts,
		Values: map[string]float64{
			vitals.VitalHeartRate: 180,
			vitals.VitalSpO2:      85,
		},
	}
}

func TestMonitor_BaselineReadingScoresOK(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)

	result := m.Ingest(baselineReading("NB-001", time.Now().UTC()))

	require.NotNil(t, result.Assessment)
	assert.Equal(t, risk.TierOK, result.Assessment.Tier)
	assert.InDelta(t, 0.0, result.Assessment.Score, 1e-9)
	assert.False(t, result.AlertCreated)
	assert.Nil(t, result.Alert)
	assert.False(t, result.Degraded)
}

func TestMonitor_CriticalReadingCreatesAlert(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)

	result := m.Ingest(sepsisReading("NB-002", time.Now().UTC()))

	require.NotNil(t, result.Assessment)
	assert.Equal(t, risk.TierCritical, result.Assessment.Tier)
	require.True(t, result.AlertCreated)
	require.NotNil(t, result.Alert)
	// Formula-triggered alerts record the deterministic rule as certainty.
	assert.Equal(t, 1.0, result.Alert.RiskProbability)
	assert.True(t, result.Alert.RiskAboveThreshold)
	assert.Equal(t, alerting.StatusPendingDoctorAction, result.Alert.Status)
	assert.Equal(t, 6.0, result.Alert.OnsetWindowHours)
}

func TestMonitor_DuplicateCriticalReadingSuppressed(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)
	now := time.Now().UTC()

	first := m.Ingest(sepsisReading("NB-003", now))
	require.True(t, first.AlertCreated)

	second := m.Ingest(sepsisReading("NB-003", now.Add(time.Minute)))
	assert.Equal(t, risk.TierCritical, second.Assessment.Tier)
	assert.False(t, second.AlertCreated, "open alert must suppress re-alerting")
	assert.Nil(t, second.Alert)
}

func TestMonitor_PredictorTriggersAlert(t *testing.T) {
	t.Parallel()
	predict := func(subjectID string, values map[string]float64) (float64, error) {
		return 0.9, nil
	}
	m := newTestMonitor(t, predict, nil)

	result := m.Ingest(baselineReading("NB-004", time.Now().UTC()))

	assert.Equal(t, risk.TierOK, result.Assessment.Tier)
	require.True(t, result.AlertCreated, "predictor above threshold must alert regardless of tier")
	assert.Equal(t, 0.9, result.Alert.RiskProbability)
	assert.True(t, result.Alert.RiskAboveThreshold)
}

func TestMonitor_PredictorBelowThresholdNoAlert(t *testing.T) {
	t.Parallel()
	predict := func(subjectID string, values map[string]float64) (float64, error) {
		return 0.2, nil
	}
	m := newTestMonitor(t, predict, nil)

	result := m.Ingest(baselineReading("NB-005", time.Now().UTC()))
	assert.False(t, result.AlertCreated)
}

func TestMonitor_PredictorErrorFallsBackToFormula(t *testing.T) {
	t.Parallel()
	predict := func(subjectID string, values map[string]float64) (float64, error) {
		return 0, errors.New("inference service unavailable")
	}
	m := newTestMonitor(t, predict, nil)

	result := m.Ingest(sepsisReading("NB-006", time.Now().UTC()))

	require.True(t, result.AlertCreated, "formula trigger must survive predictor failure")
	assert.Equal(t, 1.0, result.Alert.RiskProbability)
}

func TestMonitor_PredictorProbabilityUsedForCriticalTier(t *testing.T) {
	t.Parallel()
	predict := func(subjectID string, values map[string]float64) (float64, error) {
		return 0.6, nil
	}
	m := newTestMonitor(t, predict, nil)

	result := m.Ingest(sepsisReading("NB-007", time.Now().UTC()))

	// Tier still triggers, but the recorded probability is the model's, which
	// here sits below the reward threshold.
	require.True(t, result.AlertCreated)
	assert.Equal(t, 0.6, result.Alert.RiskProbability)
	assert.False(t, result.Alert.RiskAboveThreshold)
}

func TestMonitor_OutOfOrderReadingScoresDegraded(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)
	now := time.Now().UTC()

	first := m.Ingest(baselineReading("NB-008", now))
	require.False(t, first.Degraded)

	late := m.Ingest(baselineReading("NB-008", now.Add(-time.Minute)))
	assert.True(t, late.Degraded, "stale reading must be flagged")
	require.NotNil(t, late.Assessment, "degraded readings are still scored")
	assert.Equal(t, risk.TierOK, late.Assessment.Tier)
}

func TestMonitor_LatestServesMostRecentAssessment(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)
	now := time.Now().UTC()

	m.Ingest(baselineReading("NB-009", now))
	result := m.Ingest(sepsisReading("NB-009", now.Add(time.Minute)))

	latest, ok := m.Latest("NB-009")
	require.True(t, ok)
	assert.Equal(t, result.Assessment.Score, latest.Score)
	assert.Equal(t, result.Assessment.Tier, latest.Tier)

	_, ok = m.Latest("NB-unknown")
	assert.False(t, ok)
}

func TestMonitor_PublishesAssessmentEvents(t *testing.T) {
	t.Parallel()
	bus := NewEventBus()
	defer bus.Stop()

	events := make(chan *AssessmentEvent, 4)
	bus.Subscribe(func(event *AssessmentEvent) {
		events <- event
	})

	m := newTestMonitor(t, nil, bus)
	m.Ingest(sepsisReading("NB-010", time.Now().UTC()))

	select {
	case event := <-events:
		assert.Equal(t, "NB-010", event.Reading.SubjectID)
		assert.Equal(t, risk.TierCritical, event.Assessment.Tier)
		assert.True(t, event.AlertCreated)
		require.NotNil(t, event.Alert)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for assessment event")
	}
}

func TestMonitor_SubjectBaselineAdapts(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, nil, nil)
	now := time.Now().UTC()

	// Five identical elevated readings: by the fifth, the window meets the
	// minimum sample count and the subject's own statistics replace the
	// clinical defaults; a constant window collapses sigma to the floor.
	var last Result
	for i := 0; i < 5; i++ {
		last = m.Ingest(&vitals.Reading{
			SubjectID: "NB-011",
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{vitals.VitalHeartRate: 170},
		})
	}

	contribution, ok := last.Assessment.Contributions[vitals.VitalHeartRate]
	require.True(t, ok)
	assert.Less(t, contribution.Sigma, 1.0, "constant window collapses sigma to the floor")
}
