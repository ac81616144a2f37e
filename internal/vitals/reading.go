// Package vitals maintains rolling per-subject statistics over timestamped
// vital-sign readings.
package vitals

import (
	"fmt"
	"time"
)

// Canonical vital names. These match the keys of the configured clinical
// parameter table.
const (
	VitalHeartRate            = "heart_rate"
	VitalSpO2                 = "spo2"
	VitalRespiratoryRate      = "respiratory_rate"
	VitalTemperature          = "temperature"
	VitalMeanArterialPressure = "mean_arterial_pressure"
)

// Reading is a single immutable vital-sign record for one subject.
// Values maps vital name to measured value; vitals absent from the map were
// not measured at this timestamp.
type Reading struct {
	SubjectID string             `json:"subject_id"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Range is the unit-specific plausible measurement range for a vital.
type Range struct {
	Min float64
	Max float64
}

// plausibleRanges covers physically possible monitor output, not healthy
// ranges. Readings outside these bounds indicate sensor faults.
var plausibleRanges = map[string]Range{
	VitalHeartRate:            {Min: 20, Max: 300},
	VitalSpO2:                 {Min: 0, Max: 100},
	VitalRespiratoryRate:      {Min: 0, Max: 150},
	VitalTemperature:          {Min: 30, Max: 43},
	VitalMeanArterialPressure: {Min: 10, Max: 200},
}

// PlausibleRange returns the plausible range for a known vital name.
func PlausibleRange(vital string) (Range, bool) {
	r, ok := plausibleRanges[vital]
	return r, ok
}

// Validate checks that the reading has a subject, a timestamp, at least one
// value, and that every known vital is within its plausible range. Unknown
// vital names are accepted; the scorer skips them.
func (r *Reading) Validate() error {
	if r.SubjectID == "" {
		return fmt.Errorf("reading has no subject id")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading has no timestamp")
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("reading for subject %s has no vital values", r.SubjectID)
	}
	for vital, value := range r.Values {
		bounds, known := plausibleRanges[vital]
		if !known {
			continue
		}
		if value < bounds.Min || value > bounds.Max {
			return fmt.Errorf("vital %s value %g outside plausible range [%g, %g]",
				vital, value, bounds.Min, bounds.Max)
		}
	}
	return nil
}
