package entities

import (
	"time"

	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

// Observation is the audit record of one scored reading: the raw vital values
// alongside the assessment they produced. Vital columns are nullable because
// readings carry only the vitals that were measured.
type Observation struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	SubjectID            string    `gorm:"size:64;not null;index:idx_obs_subject_ts" json:"subject_id"`
	Timestamp            time.Time `gorm:"not null;index:idx_obs_subject_ts" json:"timestamp"`
	HeartRate            *float64  `json:"heart_rate,omitempty"`
	SpO2                 *float64  `json:"spo2,omitempty"`
	RespiratoryRate      *float64  `json:"respiratory_rate,omitempty"`
	Temperature          *float64  `json:"temperature,omitempty"`
	MeanArterialPressure *float64  `json:"mean_arterial_pressure,omitempty"`
	Score                float64   `gorm:"not null" json:"score"`
	Tier                 string    `gorm:"size:16;not null;index" json:"tier"`
	Degraded             bool      `gorm:"not null;default:false" json:"degraded"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Observation) TableName() string {
	return "observations"
}

// NewObservation builds the audit row for one scored reading.
func NewObservation(reading *vitals.Reading, assessment *risk.Assessment, degraded bool) *Observation {
	obs := &Observation{
		SubjectID: reading.SubjectID,
		Timestamp: reading.Timestamp,
		Score:     assessment.Score,
		Tier:      string(assessment.Tier),
		Degraded:  degraded,
	}
	obs.HeartRate = vitalValue(reading, vitals.VitalHeartRate)
	obs.SpO2 = vitalValue(reading, vitals.VitalSpO2)
	obs.RespiratoryRate = vitalValue(reading, vitals.VitalRespiratoryRate)
	obs.Temperature = vitalValue(reading, vitals.VitalTemperature)
	obs.MeanArterialPressure = vitalValue(reading, vitals.VitalMeanArterialPressure)
	return obs
}

func vitalValue(reading *vitals.Reading, vital string) *float64 {
	if v, ok := reading.Values[vital]; ok {
		return &v
	}
	return nil
}
