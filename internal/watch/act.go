package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Actor calls the admin endpoints of the simulation API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StopResult mirrors the POST /api/v1/stop response.
type StopResult struct {
	Tick    uint64 `json:"tick"`
	Message string `json:"message"`
}

// Stop asks the simulation to stop after its current tick.
func (a *Actor) Stop() (*StopResult, error) {
	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/stop", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST stop: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stop returned %d: %s", resp.StatusCode, string(body))
	}

	var result StopResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}
