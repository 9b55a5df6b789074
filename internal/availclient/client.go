// Package availclient asks the external availability service whether a tutor
// has declared availability. The matching engine treats the answer as a
// boolean predicate; the availability data itself never enters this system.
package availclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the availability microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every tutor is reported available.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// HasAvailability reports whether the tutor has any declared availability.
func (c *Client) HasAvailability(ctx context.Context, tutorID string) (bool, error) {
	if c.Skip {
		return true, nil
	}
	if tutorID == "" {
		return false, fmt.Errorf("tutor id required")
	}

	url := fmt.Sprintf("%s/tutors/%s/availability", c.BaseURL, tutorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("availability service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("availability service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Available, nil
}
