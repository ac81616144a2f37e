// Package repository provides data access for subjects, observations, and
// alert records.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/neovance/neovance-go/internal/datastore/entities"
)

// Sentinel errors returned by repositories.
var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrAlertNotFound   = errors.New("alert record not found")
)

// SubjectRepository manages subject rows.
type SubjectRepository interface {
	// Upsert creates the subject or updates its demographic fields, keyed on
	// the external subject id.
	Upsert(ctx context.Context, subject *entities.Subject) error
	Get(ctx context.Context, subjectID string) (*entities.Subject, error)
	List(ctx context.Context) ([]entities.Subject, error)
}

// ObservationFilter narrows observation queries.
type ObservationFilter struct {
	SubjectID string
	Since     time.Time
	Tier      string
	Limit     int
}

// ObservationRepository manages the scored-reading audit trail.
type ObservationRepository interface {
	Insert(ctx context.Context, obs *entities.Observation) error
	List(ctx context.Context, filter ObservationFilter) ([]entities.Observation, error)
	Latest(ctx context.Context, subjectID string) (*entities.Observation, error)
}

// TrainingExample is one completed human-in-the-loop episode, exported for
// model retraining.
type TrainingExample struct {
	AlertID            uint64     `json:"alert_id"`
	SubjectID          string     `json:"subject_id"`
	AlertedAt          time.Time  `json:"alerted_at"`
	RiskProbability    float64    `json:"risk_probability"`
	RiskAboveThreshold bool       `json:"risk_above_threshold"`
	ActionType         string     `json:"action_type"`
	OutcomeConfirmed   bool       `json:"outcome_confirmed"`
	Reward             int        `json:"reward"`
	OutcomeAt          *time.Time `json:"outcome_at,omitempty"`
}

// AlertRepository mirrors alert lifecycle state into durable storage.
type AlertRepository interface {
	// Save upserts the record keyed on the engine's alert id, so repeated
	// saves across transitions converge on the latest state.
	Save(ctx context.Context, record *entities.AlertRecord) error
	Get(ctx context.Context, alertID uint64) (*entities.AlertRecord, error)
	ListByStatus(ctx context.Context, status string) ([]entities.AlertRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]entities.AlertRecord, error)
	// TrainingData returns all episodes with a logged outcome, oldest first.
	TrainingData(ctx context.Context) ([]TrainingExample, error)
}
