package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/datastore"
	"github.com/neovance/neovance-go/internal/datastore/entities"
	"github.com/neovance/neovance-go/internal/datastore/repository"
	"github.com/neovance/neovance-go/internal/logger"
	"github.com/neovance/neovance-go/internal/monitor"
	"github.com/neovance/neovance-go/internal/notification"
	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

type testEnv struct {
	controller *Controller
	alerts     *alerting.Manager
	alertRepo  repository.AlertRepository
}

func setupController(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)

	db, err := datastore.Open(datastore.Config{
		Dialect: datastore.DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)

	engine := vitals.NewEngine(vitals.Config{
		Window:     10 * time.Minute,
		MinSamples: 5,
		Defaults: map[string]vitals.Defaults{
			vitals.VitalHeartRate: {Mean: 145, StdDev: 15},
			vitals.VitalSpO2:      {Mean: 95, StdDev: 2.5},
		},
	})
	scorer := risk.NewScorer(risk.Config{
		Vitals: map[string]risk.VitalParams{
			vitals.VitalHeartRate: {Baseline: 145, Weight: 1.0, Exponent: 2},
			vitals.VitalSpO2:      {Baseline: 95, Weight: 3.0, Exponent: 4},
		},
		WarningThreshold:  10,
		CriticalThreshold: 20,
	}, engine)
	alerts := alerting.NewManager(alerting.Config{RiskThreshold: 0.75, Policy: alerting.PolicyReject}, log)
	mon := monitor.New(monitor.Config{AlertThreshold: 0.75, OnsetWindowHours: 6},
		engine, scorer, alerts, nil, nil, log)
	notifications := notification.NewService(notification.ServiceConfig{MaxNotifications: 100}, log)

	alertRepo := repository.NewAlertRepository(db)
	controller := New(Options{
		Monitor:         mon,
		Alerts:          alerts,
		Notifications:   notifications,
		SubjectRepo:     repository.NewSubjectRepository(db),
		ObservationRepo: repository.NewObservationRepository(db),
		AlertRepo:       alertRepo,
	}, log)

	return &testEnv{controller: controller, alerts: alerts, alertRepo: alertRepo}
}

func (env *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	env.controller.Echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestHealth(t *testing.T) {
	env := setupController(t)
	rec := env.request(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngest_OKReading(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodPost, "/api/v1/ingest",
		`{"subject_id": "NB-001", "values": {"heart_rate": 145, "spo2": 95}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.False(t, body["alert_created"].(bool))
	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, "OK", assessment["tier"])
}

func TestIngest_CriticalReadingOpensAlert(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodPost, "/api/v1/ingest",
		`{"subject_id": "NB-002", "values": {"heart_rate": 180, "spo2": 85}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.True(t, body["alert_created"].(bool))
	alert := body["alert"].(map[string]any)
	assert.Equal(t, "PENDING_DOCTOR_ACTION", alert["status"])
	assert.Equal(t, 1.0, alert["risk_probability"])
}

func TestIngest_InvalidReadings(t *testing.T) {
	env := setupController(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"subject_id":`},
		{"missing subject", `{"values": {"heart_rate": 145}}`},
		{"no values", `{"subject_id": "NB-003", "values": {}}`},
		{"implausible vital", `{"subject_id": "NB-003", "values": {"heart_rate": 900}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(t, http.MethodPost, "/api/v1/ingest", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	env := setupController(t)

	// Open an alert through ingestion.
	rec := env.request(t, http.MethodPost, "/api/v1/ingest",
		`{"subject_id": "NB-004", "values": {"heart_rate": 180, "spo2": 85}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	alertID := uint64(decodeBody(t, rec)["alert"].(map[string]any)["id"].(float64))

	// It shows up in the pending queue.
	rec = env.request(t, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decodeBody(t, rec)["count"])

	// Doctor acts.
	actionPath := fmt.Sprintf("/api/v1/alerts/%d/action", alertID)
	rec = env.request(t, http.MethodPost, actionPath,
		`{"clinician_id": "dr-lee", "action_type": "TREAT", "detail": "empiric antibiotics"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTION_TAKEN", decodeBody(t, rec)["status"])

	// A retried action hits 409 and carries the current state.
	rec = env.request(t, http.MethodPost, actionPath,
		`{"clinician_id": "dr-kim", "action_type": "OBSERVE", "detail": "recheck"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decodeBody(t, rec)
	assert.Equal(t, "ACTION_TAKEN", conflict["alert"].(map[string]any)["status"])

	// Outcome closes the episode with the reward.
	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/alerts/%d/outcome", alertID),
		`{"sepsis_confirmed": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decodeBody(t, rec)
	assert.Equal(t, "OUTCOME_LOGGED", closed["status"])
	assert.Equal(t, 1.0, closed["reward"])

	// Fetch by id reflects the final state.
	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/alerts/%d", alertID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OUTCOME_LOGGED", decodeBody(t, rec)["status"])
}

func TestAlertEndpoints_Errors(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodGet, "/api/v1/alerts/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/alerts/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/alerts?status=BOGUS", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/alerts/999/action",
		`{"clinician_id": "dr-lee", "action_type": "TREAT", "detail": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/alerts/1/outcome", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "sepsis_confirmed must be explicit")
}

func TestSubjectsAndObservations(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodPut, "/api/v1/subjects/NB-005",
		`{"gestational_age_weeks": 32, "birth_weight_grams": 1600}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decodeBody(t, rec)["count"])

	rec = env.request(t, http.MethodGet, "/api/v1/subjects/NB-005/observations?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/subjects/NB-005/observations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, decodeBody(t, rec)["count"])
}

func TestLatestAssessment(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodGet, "/api/v1/subjects/NB-006/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.request(t, http.MethodPost, "/api/v1/ingest",
		`{"subject_id": "NB-006", "values": {"heart_rate": 150}}`)

	rec = env.request(t, http.MethodGet, "/api/v1/subjects/NB-006/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody(t, rec)["cached"].(bool))
}

func TestTrainingDataExport(t *testing.T) {
	env := setupController(t)

	now := time.Now().UTC()
	confirmed := true
	reward := 1
	require.NoError(t, env.alertRepo.Save(context.Background(), &entities.AlertRecord{
		AlertID:            1,
		SubjectID:          "NB-007",
		AlertedAt:          now,
		RiskProbability:    0.9,
		RiskAboveThreshold: true,
		Status:             string(alerting.StatusOutcomeLogged),
		ActionType:         string(alerting.ActionTreat),
		OutcomeConfirmed:   &confirmed,
		Reward:             &reward,
	}))

	rec := env.request(t, http.MethodGet, "/api/v1/hil/training-data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 1.0, body["count"])
	example := body["examples"].([]any)[0].(map[string]any)
	assert.Equal(t, true, example["outcome_confirmed"])
	assert.Equal(t, 1.0, example["reward"])
}

func TestNotificationsEndpoints(t *testing.T) {
	env := setupController(t)

	// A critical ingest produces no notification by itself; the wiring lives
	// in the server setup. Publish directly.
	env.controller.notifications.NotifyAlertCreated(alerting.Alert{
		ID: 1, SubjectID: "NB-008", RiskProbability: 0.9, OnsetWindowHours: 6,
	})

	rec := env.request(t, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, 1.0, body["count"])
	id := body["notifications"].([]any)[0].(map[string]any)["id"].(string)

	rec = env.request(t, http.MethodPost, "/api/v1/notifications/"+id+"/read", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, decodeBody(t, rec)["count"])

	rec = env.request(t, http.MethodPost, "/api/v1/notifications/nope/read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAlertFromExternalPredictor(t *testing.T) {
	env := setupController(t)

	rec := env.request(t, http.MethodPost, "/api/v1/alerts",
		`{"subject_id": "NB-010", "risk_probability": 0.91, "onset_window_hours": 4}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "PENDING_DOCTOR_ACTION", body["status"])
	assert.Equal(t, 0.91, body["risk_probability"])
	assert.Equal(t, true, body["risk_above_threshold"])

	// Duplicate under the reject policy: 409 with the open alert attached.
	rec = env.request(t, http.MethodPost, "/api/v1/alerts",
		`{"subject_id": "NB-010", "risk_probability": 0.8, "onset_window_hours": 4}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decodeBody(t, rec)
	assert.Equal(t, 0.91, conflict["alert"].(map[string]any)["risk_probability"])

	// Validation failures.
	rec = env.request(t, http.MethodPost, "/api/v1/alerts", `{"risk_probability": 0.8}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.request(t, http.MethodPost, "/api/v1/alerts", `{"subject_id": "NB-011"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.request(t, http.MethodPost, "/api/v1/alerts",
		`{"subject_id": "NB-011", "risk_probability": 1.4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	env := setupController(t)

	env.request(t, http.MethodPost, "/api/v1/ingest",
		`{"subject_id": "NB-009", "values": {"heart_rate": 180, "spo2": 85}}`)

	// Persist one observation so the trailing-window aggregate has data. On
	// the ingest path this is the event bus subscriber's job.
	reading := &vitals.Reading{
		SubjectID: "NB-009",
		Timestamp: time.Now().UTC(),
		Values:    map[string]float64{vitals.VitalHeartRate: 180, vitals.VitalSpO2: 85},
	}
	assessment := &risk.Assessment{SubjectID: "NB-009", Score: 773.4, Tier: risk.TierCritical}
	require.NoError(t, env.controller.observationRepo.Insert(context.Background(),
		entities.NewObservation(reading, assessment, false)))

	rec := env.request(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	alerts := body["alerts"].(map[string]any)
	assert.Equal(t, 1.0, alerts["pending_doctor_action"])

	window := body["window"].(map[string]any)
	assert.Equal(t, 1.0, window["readings"])
	assert.Equal(t, 1.0, window["tiers"].(map[string]any)["CRITICAL"])
	assert.Equal(t, 773.4, window["score_avg"])
}
