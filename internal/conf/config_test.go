package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, 60*time.Minute, s.Monitor.Window.Std())
	assert.Equal(t, 2, s.Monitor.MinSamples)
	assert.InDelta(t, 10.0, s.Risk.WarningThreshold, 0.001)
	assert.InDelta(t, 20.0, s.Risk.CriticalThreshold, 0.001)
	assert.InDelta(t, 0.75, s.Alerting.RiskThreshold, 0.001)
	assert.Equal(t, OpenAlertPolicyReject, s.Alerting.OpenAlertPolicy)
	assert.Len(t, s.Risk.Vitals, 5)

	spo2, ok := s.Risk.Vitals["spo2"]
	require.True(t, ok)
	assert.InDelta(t, 95.0, spo2.Baseline, 0.001)
	assert.InDelta(t, 3.0, spo2.Weight, 0.001)
	assert.InDelta(t, 4.0, spo2.Exponent, 0.001)
	assert.InDelta(t, 2.5, spo2.DefaultSigma, 0.001)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
monitor:
  window: 30m
  min_samples: 5
alerting:
  open_alert_policy: supersede
risk:
  warning_threshold: 8
  critical_threshold: 16
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, s.Monitor.Window.Std())
	assert.Equal(t, 5, s.Monitor.MinSamples)
	assert.Equal(t, OpenAlertPolicySupersede, s.Alerting.OpenAlertPolicy)
	assert.InDelta(t, 8.0, s.Risk.WarningThreshold, 0.001)
	// Vitals table still comes from defaults.
	assert.Len(t, s.Risk.Vitals, 5)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero window", func(s *Settings) { s.Monitor.Window = 0 }},
		{"zero min samples", func(s *Settings) { s.Monitor.MinSamples = 0 }},
		{"negative tolerance", func(s *Settings) { s.Monitor.OutOfOrderTolerance = -1 }},
		{"no vitals", func(s *Settings) { s.Risk.Vitals = nil }},
		{"exponent below one", func(s *Settings) {
			p := s.Risk.Vitals["heart_rate"]
			p.Exponent = 0.5
			s.Risk.Vitals["heart_rate"] = p
		}},
		{"negative weight", func(s *Settings) {
			p := s.Risk.Vitals["spo2"]
			p.Weight = -1
			s.Risk.Vitals["spo2"] = p
		}},
		{"zero sigma", func(s *Settings) {
			p := s.Risk.Vitals["temperature"]
			p.DefaultSigma = 0
			s.Risk.Vitals["temperature"] = p
		}},
		{"inverted tiers", func(s *Settings) { s.Risk.CriticalThreshold = s.Risk.WarningThreshold }},
		{"risk threshold out of range", func(s *Settings) { s.Alerting.RiskThreshold = 1.5 }},
		{"unknown policy", func(s *Settings) { s.Alerting.OpenAlertPolicy = "tolerate" }},
		{"unknown dialect", func(s *Settings) { s.Database.Dialect = "oracle" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := Default()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
