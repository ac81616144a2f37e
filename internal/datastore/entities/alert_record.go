package entities

import (
	"time"

	"github.com/neovance/neovance-go/internal/alerting"
)

// AlertRecord is the durable mirror of one alert's lifecycle. AlertID is the
// engine's id; records are upserted on every transition so the row always
// reflects the latest state.
type AlertRecord struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	AlertID            uint64     `gorm:"not null;uniqueIndex" json:"alert_id"`
	SubjectID          string     `gorm:"size:64;not null;index" json:"subject_id"`
	AlertedAt          time.Time  `gorm:"not null" json:"alerted_at"`
	RiskProbability    float64    `gorm:"not null" json:"risk_probability"`
	OnsetWindowHours   float64    `gorm:"not null" json:"onset_window_hours"`
	RiskAboveThreshold bool       `gorm:"not null" json:"risk_above_threshold"`
	Status             string     `gorm:"size:32;not null;index" json:"status"`
	ClinicianID        string     `gorm:"size:64;default:''" json:"clinician_id"`
	ActionType         string     `gorm:"size:32;default:''" json:"action_type"`
	ActionDetail       string     `gorm:"size:1000;default:''" json:"action_detail"`
	ActionAt           *time.Time `json:"action_at,omitempty"`
	OutcomeConfirmed   *bool      `json:"outcome_confirmed,omitempty"`
	OutcomeAt          *time.Time `json:"outcome_at,omitempty"`
	Reward             *int       `json:"reward,omitempty"`
	SupersededBy       uint64     `gorm:"default:0" json:"superseded_by"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRecord) TableName() string {
	return "alert_records"
}

// NewAlertRecord mirrors an engine alert into its persistence row.
func NewAlertRecord(alert alerting.Alert) *AlertRecord {
	return &AlertRecord{
		AlertID:            alert.ID,
		SubjectID:          alert.SubjectID,
		AlertedAt:          alert.CreatedAt,
		RiskProbability:    alert.RiskProbability,
		OnsetWindowHours:   alert.OnsetWindowHours,
		RiskAboveThreshold: alert.RiskAboveThreshold,
		Status:             string(alert.Status),
		ClinicianID:        alert.ClinicianID,
		ActionType:         string(alert.ActionType),
		ActionDetail:       alert.ActionDetail,
		ActionAt:           alert.ActionAt,
		OutcomeConfirmed:   alert.OutcomeConfirmed,
		OutcomeAt:          alert.OutcomeAt,
		Reward:             alert.Reward,
		SupersededBy:       alert.SupersededBy,
	}
}
