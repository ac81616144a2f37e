// Package entities defines the persistence model for subjects, observations,
// and the alert audit trail.
package entities

import "time"

// Subject is one monitored patient.
type Subject struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	SubjectID           string    `gorm:"size:64;not null;uniqueIndex" json:"subject_id"`
	AdmittedAt          time.Time `json:"admitted_at"`
	GestationalAgeWeeks float64   `gorm:"default:0" json:"gestational_age_weeks"`
	BirthWeightGrams    float64   `gorm:"default:0" json:"birth_weight_grams"`
	Notes               string    `gorm:"size:1000;default:''" json:"notes"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}
