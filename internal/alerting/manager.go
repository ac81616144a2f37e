package alerting

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neovance/neovance-go/internal/logger"
)

// OpenAlertPolicy decides what creation does when the subject already has an
// open alert.
type OpenAlertPolicy string

const (
	// PolicyReject refuses the new alert with ErrAlertAlreadyOpen.
	PolicyReject OpenAlertPolicy = "reject"
	// PolicySupersede closes the prior open alert as SUPERSEDED and creates
	// the new one in its place.
	PolicySupersede OpenAlertPolicy = "supersede"
)

// ParseOpenAlertPolicy validates a policy string from configuration.
func ParseOpenAlertPolicy(s string) (OpenAlertPolicy, error) {
	switch OpenAlertPolicy(s) {
	case PolicyReject, PolicySupersede:
		return OpenAlertPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown open-alert policy %q", s)
	}
}

// Config parameterizes the lifecycle manager.
type Config struct {
	// RiskThreshold is the probability above which a risk call counts as
	// positive for the reward law.
	RiskThreshold float64
	// Policy handles duplicate alert creation per subject.
	Policy OpenAlertPolicy
}

// CreatedFunc is invoked with a snapshot after a new alert is created. The
// manager guarantees every lock is released before the call, so the hook may
// block or read back through the manager. Used to notify clinicians and
// persist the audit record.
type CreatedFunc func(alert Alert)

// TransitionFunc is invoked with a snapshot after a successful lifecycle
// transition, under the same guarantee as CreatedFunc: the alert's lock is
// released before the call.
type TransitionFunc func(alert Alert)

// Manager owns all alerts and their lifecycle transitions. The alert id
// counter is the single piece of cross-subject shared state; everything else
// is guarded per alert so transitions for different alerts never contend.
type Manager struct {
	cfg Config
	log logger.Logger

	nextID atomic.Uint64

	mu            sync.RWMutex
	alerts        map[uint64]*alertState
	openBySubject map[string]uint64

	onCreated    CreatedFunc
	onTransition TransitionFunc
}

// alertState guards one alert's mutations with its own lock, so two
// concurrent transitions for the same id serialize and exactly one observes
// the required pre-state.
type alertState struct {
	mu    sync.Mutex
	alert Alert
}

// NewManager creates an alert lifecycle manager.
func NewManager(cfg Config, log logger.Logger) *Manager {
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	return &Manager{
		cfg:           cfg,
		log:           log,
		alerts:        make(map[uint64]*alertState),
		openBySubject: make(map[string]uint64),
	}
}

// OnCreated registers the post-creation hook. Call before ingestion starts.
func (m *Manager) OnCreated(fn CreatedFunc) {
	m.onCreated = fn
}

// OnTransition registers the post-transition hook. Call before ingestion starts.
func (m *Manager) OnTransition(fn TransitionFunc) {
	m.onTransition = fn
}

// CreateAlert opens a new alert for the subject. The probability must be in
// [0, 1]; whether it exceeded the alert threshold is fixed here and reused
// verbatim by the reward computation. Duplicate open alerts follow the
// configured policy.
func (m *Manager) CreateAlert(subjectID string, riskProbability, onsetWindowHours float64) (Alert, error) {
	if subjectID == "" {
		return Alert{}, fmt.Errorf("alert requires a subject id")
	}
	if riskProbability < 0 || riskProbability > 1 {
		return Alert{}, fmt.Errorf("risk probability %g outside [0, 1]", riskProbability)
	}

	m.mu.Lock()
	var superseded *alertState
	if openID, exists := m.openBySubject[subjectID]; exists {
		if m.cfg.Policy == PolicyReject {
			snapshot := m.alerts[openID].snapshot()
			m.mu.Unlock()
			return snapshot, fmt.Errorf("%w: subject %s alert %d", ErrAlertAlreadyOpen, subjectID, openID)
		}
		superseded = m.alerts[openID]
	}

	alert := Alert{
		ID:                 m.nextID.Add(1),
		SubjectID:          subjectID,
		CreatedAt:          time.Now().UTC(),
		RiskProbability:    riskProbability,
		OnsetWindowHours:   onsetWindowHours,
		RiskAboveThreshold: riskProbability > m.cfg.RiskThreshold,
		Status:             StatusPendingDoctorAction,
	}
	m.alerts[alert.ID] = &alertState{alert: alert}
	m.openBySubject[subjectID] = alert.ID
	m.mu.Unlock()

	if superseded != nil {
		superseded.mu.Lock()
		// The prior alert may have closed between the map lookup and here;
		// only an open alert is marked superseded.
		didSupersede := superseded.alert.Open()
		if didSupersede {
			superseded.alert.Status = StatusSuperseded
			superseded.alert.SupersededBy = alert.ID
			m.log.Info("alert superseded",
				logger.Uint64("superseded_id", superseded.alert.ID),
				logger.Uint64("alert_id", alert.ID),
				logger.String("subject_id", subjectID))
		}
		supersededSnapshot := superseded.alert
		superseded.mu.Unlock()

		if didSupersede && m.onTransition != nil {
			m.onTransition(supersededSnapshot)
		}
	}

	m.log.Info("alert created",
		logger.Uint64("alert_id", alert.ID),
		logger.String("subject_id", subjectID),
		logger.Float64("risk_probability", riskProbability),
		logger.Bool("risk_above_threshold", alert.RiskAboveThreshold))

	if m.onCreated != nil {
		m.onCreated(alert)
	}
	return alert, nil
}

// RecordAction transitions PENDING_DOCTOR_ACTION -> ACTION_TAKEN, stamping
// the acting clinician and timestamp. A retried or late request finds the
// alert past the pre-state and gets the current snapshot plus
// ErrInvalidTransition, so actions are never double-applied.
func (m *Manager) RecordAction(alertID uint64, clinicianID, actionType, detail string) (Alert, error) {
	parsed, err := ParseActionType(actionType)
	if err != nil {
		return Alert{}, err
	}
	if detail == "" {
		return Alert{}, ErrEmptyActionDetail
	}
	if clinicianID == "" {
		return Alert{}, fmt.Errorf("clinician id is required")
	}

	state, err := m.state(alertID)
	if err != nil {
		return Alert{}, err
	}

	state.mu.Lock()
	if state.alert.Status != StatusPendingDoctorAction {
		snapshot := state.alert
		state.mu.Unlock()
		return snapshot, fmt.Errorf("%w: record_action on alert %d in state %s",
			ErrInvalidTransition, alertID, snapshot.Status)
	}

	now := time.Now().UTC()
	state.alert.ClinicianID = clinicianID
	state.alert.ActionType = parsed
	state.alert.ActionDetail = detail
	state.alert.ActionAt = &now
	state.alert.Status = StatusActionTaken
	snapshot := state.alert
	state.mu.Unlock()

	m.log.Info("clinician action recorded",
		logger.Uint64("alert_id", alertID),
		logger.String("clinician_id", clinicianID),
		logger.String("action_type", string(parsed)))

	if m.onTransition != nil {
		m.onTransition(snapshot)
	}
	return snapshot, nil
}

// RecordOutcome transitions ACTION_TAKEN -> OUTCOME_LOGGED, stores the
// confirmed outcome, and computes the reward exactly once. The subject's
// open-alert slot is released.
func (m *Manager) RecordOutcome(alertID uint64, confirmed bool) (Alert, error) {
	state, err := m.state(alertID)
	if err != nil {
		return Alert{}, err
	}

	state.mu.Lock()
	if state.alert.Status != StatusActionTaken {
		snapshot := state.alert
		state.mu.Unlock()
		return snapshot, fmt.Errorf("%w: record_outcome on alert %d in state %s",
			ErrInvalidTransition, alertID, snapshot.Status)
	}

	now := time.Now().UTC()
	reward := computeReward(state.alert.RiskAboveThreshold, confirmed)
	state.alert.OutcomeConfirmed = &confirmed
	state.alert.OutcomeAt = &now
	state.alert.Reward = &reward
	state.alert.Status = StatusOutcomeLogged
	snapshot := state.alert
	state.mu.Unlock()

	m.releaseOpenSlot(snapshot.SubjectID, alertID)

	m.log.Info("alert outcome recorded",
		logger.Uint64("alert_id", alertID),
		logger.Bool("confirmed", confirmed),
		logger.Int("reward", reward))

	if m.onTransition != nil {
		m.onTransition(snapshot)
	}
	return snapshot, nil
}

// GetAlert returns a snapshot of one alert.
func (m *Manager) GetAlert(alertID uint64) (Alert, error) {
	state, err := m.state(alertID)
	if err != nil {
		return Alert{}, err
	}
	return state.snapshot(), nil
}

// AlertsByStatus returns snapshots of all alerts in the given status, ordered
// by id. Status is a first-class filter so role-based views (pending for
// doctors, action-taken for outcome loggers) are a single call.
func (m *Manager) AlertsByStatus(status Status) []Alert {
	m.mu.RLock()
	states := make([]*alertState, 0, len(m.alerts))
	for _, state := range m.alerts {
		states = append(states, state)
	}
	m.mu.RUnlock()

	out := make([]Alert, 0, len(states))
	for _, state := range states {
		snapshot := state.snapshot()
		if snapshot.Status == status {
			out = append(out, snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenAlert returns the subject's open alert, if any.
func (m *Manager) OpenAlert(subjectID string) (Alert, bool) {
	m.mu.RLock()
	id, exists := m.openBySubject[subjectID]
	state := m.alerts[id]
	m.mu.RUnlock()
	if !exists {
		return Alert{}, false
	}
	snapshot := state.snapshot()
	if !snapshot.Open() {
		return Alert{}, false
	}
	return snapshot, true
}

func (m *Manager) state(alertID uint64) (*alertState, error) {
	m.mu.RLock()
	state, exists := m.alerts[alertID]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownAlert, alertID)
	}
	return state, nil
}

// releaseOpenSlot clears the subject's open-alert mapping if it still points
// at the given alert. A superseding alert may already own the slot.
func (m *Manager) releaseOpenSlot(subjectID string, alertID uint64) {
	m.mu.Lock()
	if m.openBySubject[subjectID] == alertID {
		delete(m.openBySubject, subjectID)
	}
	m.mu.Unlock()
}

func (s *alertState) snapshot() Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alert
}
