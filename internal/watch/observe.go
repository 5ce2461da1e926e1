// Package watch observes a running simulation through its HTTP API and
// classifies how the response is going.
package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/metrics"
)

// Snapshot holds everything collected in one observation.
type Snapshot struct {
	Status    Status            `json:"status"`
	Metrics   metrics.Snapshot  `json:"metrics"`
	Hospitals engine.QueueState `json:"hospitals"`
	At        time.Time         `json:"at"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	RunID    string        `json:"run_id"`
	Strategy string        `json:"strategy"`
	Map      string        `json:"map"`
	Seed     int64         `json:"seed"`
	Tick     uint64        `json:"tick"`
	Phase    string        `json:"phase"`
	Census   engine.Census `json:"census"`
}

// Observer fetches simulation state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches status, metrics and hospital queues.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{At: time.Now()}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/metrics", &snap.Metrics); err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	if err := o.fetchJSON("/api/v1/hospitals", &snap.Hospitals); err != nil {
		return nil, fmt.Errorf("fetch hospitals: %w", err)
	}
	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
