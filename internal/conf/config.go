// Package conf loads and validates application settings from YAML files
// and environment variables via Viper.
package conf

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Open-alert policies control what happens when an alert is created for a
// subject that already has an open alert.
const (
	OpenAlertPolicyReject    = "reject"
	OpenAlertPolicySupersede = "supersede"
)

// Settings is the root configuration structure.
type Settings struct {
	Monitor   MonitorSettings   `mapstructure:"monitor"`
	Risk      RiskSettings      `mapstructure:"risk"`
	Alerting  AlertingSettings  `mapstructure:"alerting"`
	Realtime  RealtimeSettings  `mapstructure:"realtime"`
	MQTT      MQTTSettings      `mapstructure:"mqtt"`
	Database  DatabaseSettings  `mapstructure:"database"`
	WebServer WebServerSettings `mapstructure:"webserver"`
	Predictor PredictorSettings `mapstructure:"predictor"`
}

// MonitorSettings configures the rolling statistics engine and dispatcher.
type MonitorSettings struct {
	// Window is the trailing time span of retained readings per subject/vital.
	Window Duration `mapstructure:"window"`
	// MinSamples is the sample count below which clinical defaults are used.
	MinSamples int `mapstructure:"min_samples"`
	// OutOfOrderTolerance allows readings this much older than the window's
	// latest entry before they are rejected. Zero means strict monotonicity.
	OutOfOrderTolerance Duration `mapstructure:"out_of_order_tolerance"`
}

// VitalParams holds the clinical scoring parameters for one vital.
type VitalParams struct {
	// Baseline is the ideal value (mu) for this vital.
	Baseline float64 `mapstructure:"baseline"`
	// Weight scales this vital's contribution to the aggregate score.
	Weight float64 `mapstructure:"weight"`
	// Exponent shapes the deviation penalty; must be >= 1.
	Exponent float64 `mapstructure:"exponent"`
	// DefaultSigma is the population standard deviation used until enough
	// patient-specific samples exist.
	DefaultSigma float64 `mapstructure:"default_sigma"`
}

// RiskSettings configures the risk scoring engine.
type RiskSettings struct {
	// Vitals maps vital name to its clinical parameters.
	Vitals map[string]VitalParams `mapstructure:"vitals"`
	// WarningThreshold (T1): scores above it are at least WARNING.
	WarningThreshold float64 `mapstructure:"warning_threshold"`
	// CriticalThreshold (T2): scores above it are CRITICAL.
	CriticalThreshold float64 `mapstructure:"critical_threshold"`
}

// AlertingSettings configures the alert lifecycle manager.
type AlertingSettings struct {
	// RiskThreshold is the model probability above which an alert is raised.
	RiskThreshold float64 `mapstructure:"risk_threshold"`
	// OpenAlertPolicy is "reject" or "supersede" for duplicate open alerts.
	OpenAlertPolicy string `mapstructure:"open_alert_policy"`
	// DefaultOnsetWindowHours is the predicted onset window recorded on
	// alerts created by the formula-based scorer.
	DefaultOnsetWindowHours float64 `mapstructure:"default_onset_window_hours"`
}

// RealtimeSettings configures the live feed.
type RealtimeSettings struct {
	// LatestTTL is how long the latest assessment per subject stays cached.
	LatestTTL Duration `mapstructure:"latest_ttl"`
}

// MQTTSettings configures the bedside-monitor ingest bridge.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	// Dialect is "sqlite" or "mysql".
	Dialect string `mapstructure:"dialect"`
	// Path is the SQLite database file path.
	Path string `mapstructure:"path"`
	// DSN is the MySQL connection string.
	DSN string `mapstructure:"dsn"`
}

// WebServerSettings configures the HTTP API server.
type WebServerSettings struct {
	Address string `mapstructure:"address"`
}

// PredictorSettings configures the optional external prediction service.
type PredictorSettings struct {
	Enabled bool     `mapstructure:"enabled"`
	URL     string   `mapstructure:"url"`
	Timeout Duration `mapstructure:"timeout"`
}

// Load reads settings from the given config file (optional) with environment
// variable overrides (NEOVANCE_ prefix) and validates them.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("neovance")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var settings Settings
	decodeOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(DurationDecodeHook()))
	if err := v.Unmarshal(&settings, decodeOpt); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Default returns the built-in settings without touching the filesystem.
func Default() *Settings {
	v := viper.New()
	setDefaults(v)
	var settings Settings
	decodeOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(DurationDecodeHook()))
	// Defaults are statically known; decoding them cannot fail.
	_ = v.Unmarshal(&settings, decodeOpt)
	return &settings
}

// setDefaults seeds Viper with the clinical parameter table for a 28-week
// premature infant and sane operational defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.window", "60m")
	v.SetDefault("monitor.min_samples", 2)
	v.SetDefault("monitor.out_of_order_tolerance", "0s")

	v.SetDefault("risk.warning_threshold", 10.0)
	v.SetDefault("risk.critical_threshold", 20.0)
	v.SetDefault("risk.vitals", map[string]map[string]float64{
		"heart_rate":             {"baseline": 145.0, "weight": 1.0, "exponent": 2, "default_sigma": 15.0},
		"spo2":                   {"baseline": 95.0, "weight": 3.0, "exponent": 4, "default_sigma": 2.5},
		"respiratory_rate":       {"baseline": 50.0, "weight": 1.5, "exponent": 2, "default_sigma": 10.0},
		"temperature":            {"baseline": 37.0, "weight": 1.0, "exponent": 3, "default_sigma": 0.5},
		"mean_arterial_pressure": {"baseline": 35.0, "weight": 2.0, "exponent": 2, "default_sigma": 5.0},
	})

	v.SetDefault("alerting.risk_threshold", 0.75)
	v.SetDefault("alerting.open_alert_policy", OpenAlertPolicyReject)
	v.SetDefault("alerting.default_onset_window_hours", 6.0)

	v.SetDefault("realtime.latest_ttl", "30s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "neovance/vitals/+")
	v.SetDefault("mqtt.client_id", "neovance-monitor")

	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.path", "neovance.db")

	v.SetDefault("webserver.address", ":8080")

	v.SetDefault("predictor.enabled", false)
	v.SetDefault("predictor.url", "http://localhost:8001")
	v.SetDefault("predictor.timeout", "5s")
}

// Validate checks cross-field invariants that Viper cannot express.
func (s *Settings) Validate() error {
	if s.Monitor.Window <= 0 {
		return fmt.Errorf("monitor.window must be positive, got %s", s.Monitor.Window.Std())
	}
	if s.Monitor.MinSamples < 1 {
		return fmt.Errorf("monitor.min_samples must be at least 1, got %d", s.Monitor.MinSamples)
	}
	if s.Monitor.OutOfOrderTolerance < 0 {
		return fmt.Errorf("monitor.out_of_order_tolerance must not be negative, got %s", s.Monitor.OutOfOrderTolerance.Std())
	}

	if len(s.Risk.Vitals) == 0 {
		return fmt.Errorf("risk.vitals must configure at least one vital")
	}
	for name, p := range s.Risk.Vitals {
		if p.Exponent < 1 {
			return fmt.Errorf("risk.vitals.%s.exponent must be >= 1, got %g", name, p.Exponent)
		}
		if p.Weight < 0 {
			return fmt.Errorf("risk.vitals.%s.weight must not be negative, got %g", name, p.Weight)
		}
		if p.DefaultSigma <= 0 {
			return fmt.Errorf("risk.vitals.%s.default_sigma must be positive, got %g", name, p.DefaultSigma)
		}
	}
	if s.Risk.WarningThreshold <= 0 || s.Risk.CriticalThreshold <= s.Risk.WarningThreshold {
		return fmt.Errorf("risk thresholds must satisfy 0 < warning (%g) < critical (%g)",
			s.Risk.WarningThreshold, s.Risk.CriticalThreshold)
	}

	if s.Alerting.RiskThreshold <= 0 || s.Alerting.RiskThreshold >= 1 {
		return fmt.Errorf("alerting.risk_threshold must be in (0, 1), got %g", s.Alerting.RiskThreshold)
	}
	switch s.Alerting.OpenAlertPolicy {
	case OpenAlertPolicyReject, OpenAlertPolicySupersede:
	default:
		return fmt.Errorf("alerting.open_alert_policy must be %q or %q, got %q",
			OpenAlertPolicyReject, OpenAlertPolicySupersede, s.Alerting.OpenAlertPolicy)
	}

	switch s.Database.Dialect {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.dialect must be \"sqlite\" or \"mysql\", got %q", s.Database.Dialect)
	}

	return nil
}
