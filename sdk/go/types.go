package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Update is one category's membership as pushed on the live stream.
type Update struct {
	Category string   `json:"category"`
	Members  []string `json:"members"`
}

// Leaderboard mirrors the stored leaderboard JSON surface.
type Leaderboard struct {
	Category string    `json:"category"`
	Members  []string  `json:"members"`
	Score    *float64  `json:"score,omitempty"`
	Time     time.Time `json:"time"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

var (
	// ErrEmptyCategory is returned when category is empty.
	ErrEmptyCategory = errors.New("category is required")
	ErrNotFound      = errors.New("leaderboard not found")
	ErrUnhealthy     = errors.New("server reported unhealthy")
)
