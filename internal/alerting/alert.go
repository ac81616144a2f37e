// Package alerting manages the human-in-the-loop alert lifecycle: creation on
// high risk, clinician action recording, outcome recording, and reward
// computation.
package alerting

import (
	"errors"
	"fmt"
	"time"
)

// Status is an alert's position in the lifecycle state machine.
type Status string

const (
	// StatusPendingDoctorAction: created, awaiting a clinician.
	StatusPendingDoctorAction Status = "PENDING_DOCTOR_ACTION"
	// StatusActionTaken: a clinician acted, awaiting the confirmed outcome.
	StatusActionTaken Status = "ACTION_TAKEN"
	// StatusOutcomeLogged: terminal; outcome recorded and reward computed.
	StatusOutcomeLogged Status = "OUTCOME_LOGGED"
	// StatusSuperseded: terminal; replaced by a newer alert under the
	// supersede policy before any clinician acted on it.
	StatusSuperseded Status = "SUPERSEDED"
)

// ParseStatus validates a status string from an API query.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPendingDoctorAction, StatusActionTaken, StatusOutcomeLogged, StatusSuperseded:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown alert status %q", s)
	}
}

// ActionType is the fixed set of clinician responses to an alert.
type ActionType string

const (
	ActionObserve ActionType = "OBSERVE"
	ActionTreat   ActionType = "TREAT"
	ActionLabTest ActionType = "LAB_TEST"
	ActionDismiss ActionType = "DISMISS"
)

// ParseActionType validates an action type string.
// Returns ErrInvalidActionType for anything outside the fixed set.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionObserve, ActionTreat, ActionLabTest, ActionDismiss:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidActionType, s)
	}
}

// Lifecycle errors. All are caller errors returned as typed results; none is
// process-fatal.
var (
	// ErrInvalidTransition: transition attempted from the wrong state.
	ErrInvalidTransition = errors.New("invalid alert transition")
	// ErrAlertAlreadyOpen: subject already has an open alert (reject policy).
	ErrAlertAlreadyOpen = errors.New("subject already has an open alert")
	// ErrUnknownAlert: no alert with the given id.
	ErrUnknownAlert = errors.New("unknown alert")
	// ErrInvalidActionType: action type outside the fixed set.
	ErrInvalidActionType = errors.New("invalid action type")
	// ErrEmptyActionDetail: record_action requires a non-empty detail.
	ErrEmptyActionDetail = errors.New("action detail must not be empty")
)

// Alert is the central stateful entity of the human-in-the-loop trail.
// Mutation happens only through Manager transitions; everything handed out of
// the manager is a value snapshot. Closed alerts are never deleted.
type Alert struct {
	ID               uint64    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	CreatedAt        time.Time `json:"created_at"`
	RiskProbability  float64   `json:"risk_probability"`
	OnsetWindowHours float64   `json:"onset_window_hours"`
	// RiskAboveThreshold is fixed at creation: whether the triggering
	// probability exceeded the alert threshold. One half of the reward law.
	RiskAboveThreshold bool   `json:"risk_above_threshold"`
	Status             Status `json:"status"`

	ClinicianID  string     `json:"clinician_id,omitempty"`
	ActionType   ActionType `json:"action_type,omitempty"`
	ActionDetail string     `json:"action_detail,omitempty"`
	ActionAt     *time.Time `json:"action_at,omitempty"`

	OutcomeConfirmed *bool      `json:"outcome_confirmed,omitempty"`
	OutcomeAt        *time.Time `json:"outcome_at,omitempty"`
	// Reward is +1 when the triggering risk call agreed with the confirmed
	// outcome, -1 otherwise. Set exactly once at the outcome transition.
	Reward *int `json:"reward,omitempty"`

	// SupersededBy links a superseded alert to its replacement.
	SupersededBy uint64 `json:"superseded_by,omitempty"`
}

// Open reports whether the alert still occupies its subject's open-alert slot.
func (a *Alert) Open() bool {
	return a.Status == StatusPendingDoctorAction || a.Status == StatusActionTaken
}

// computeReward implements the fixed reward law: +1 iff the risk call and the
// confirmed outcome agree, -1 otherwise.
func computeReward(riskAboveThreshold, confirmed bool) int {
	if riskAboveThreshold == confirmed {
		return 1
	}
	return -1
}
