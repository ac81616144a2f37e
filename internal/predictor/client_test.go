package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neovance/neovance-go/internal/vitals"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient(Config{BaseURL: "http://predictor.test", Timeout: time.Second})
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestClient_Predict(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://predictor.test/predict",
		func(req *http.Request) (*http.Response, error) {
			var decoded struct {
				SubjectID string             `json:"subject_id"`
				Vitals    map[string]float64 `json:"vitals"`
			}
			if err := json.NewDecoder(req.Body).Decode(&decoded); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			assert.Equal(t, "NB-001", decoded.SubjectID)
			assert.Equal(t, 180.0, decoded.Vitals[vitals.VitalHeartRate])
			return httpmock.NewJsonResponse(http.StatusOK, map[string]float64{"probability": 0.87})
		})

	prob, err := client.Predict(context.Background(), "NB-001",
		map[string]float64{vitals.VitalHeartRate: 180})
	require.NoError(t, err)
	assert.Equal(t, 0.87, prob)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestClient_PredictServerError(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://predictor.test/predict",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := client.Predict(context.Background(), "NB-002", map[string]float64{vitals.VitalSpO2: 90})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_PredictRejectsOutOfRangeProbability(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://predictor.test/predict",
		httpmock.NewStringResponder(http.StatusOK, `{"probability": 1.7}`))

	_, err := client.Predict(context.Background(), "NB-003", map[string]float64{vitals.VitalSpO2: 90})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside [0, 1]")
}

func TestClient_PredictMalformedBody(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://predictor.test/predict",
		httpmock.NewStringResponder(http.StatusOK, "not json"))

	_, err := client.Predict(context.Background(), "NB-004", map[string]float64{vitals.VitalSpO2: 90})
	require.Error(t, err)
}

func TestClient_AsPredictFunc(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, "http://predictor.test/predict",
		httpmock.NewStringResponder(http.StatusOK, `{"probability": 0.42}`))

	predict := client.AsPredictFunc()
	prob, err := predict("NB-005", map[string]float64{vitals.VitalTemperature: 38.5})
	require.NoError(t, err)
	assert.Equal(t, 0.42, prob)
}
