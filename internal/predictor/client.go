// Package predictor calls the external sepsis inference service and adapts it
// to the monitor's probability hook.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 2 * time.Second

// Config parameterizes the client.
type Config struct {
	// BaseURL is the inference service root, e.g. http://predictor:9000.
	BaseURL string
	// Timeout bounds one prediction round trip. The monitor falls back to the
	// formula trigger on timeout, so this should stay well under the reading
	// interval.
	Timeout time.Duration
}

// Client is an HTTP client for the inference service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a predictor client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	SubjectID string             `json:"subject_id"`
	Vitals    map[string]float64 `json:"vitals"`
}

type predictResponse struct {
	Probability float64 `json:"probability"`
}

// Predict returns the service's sepsis probability for one reading.
func (c *Client) Predict(ctx context.Context, subjectID string, values map[string]float64) (float64, error) {
	body, err := json.Marshal(predictRequest{SubjectID: subjectID, Vitals: values})
	if err != nil {
		return 0, fmt.Errorf("failed to encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("predict request returned status %d", resp.StatusCode)
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("failed to decode predict response: %w", err)
	}
	if decoded.Probability < 0 || decoded.Probability > 1 {
		return 0, fmt.Errorf("predict response probability %g outside [0, 1]", decoded.Probability)
	}
	return decoded.Probability, nil
}

// AsPredictFunc adapts the client to the monitor's hook signature, bounding
// each call with the configured timeout.
func (c *Client) AsPredictFunc() func(subjectID string, values map[string]float64) (float64, error) {
	return func(subjectID string, values map[string]float64) (float64, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
		defer cancel()
		return c.Predict(ctx, subjectID, values)
	}
}
