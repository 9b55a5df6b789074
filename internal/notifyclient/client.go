// Package notifyclient calls the external notification service. Dispatch is
// fire-and-forget from the scheduler's perspective; a failure here never
// rolls back a session write.
package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SessionNotice is the payload for a scheduled-session notification.
type SessionNotice struct {
	SessionID    string   `json:"session_id"`
	Subject      string   `json:"subject"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	TutorID      string   `json:"tutor_id"`
	Participants []string `json:"participants"`
}

// Client calls the notification microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set every call is a no-op success, which
// keeps dev environments independent of the notification stack.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionScheduled asks the service to notify every participant about a new
// or rescheduled session.
func (c *Client) SessionScheduled(ctx context.Context, notice SessionNotice) error {
	return c.post(ctx, "/notify/session-scheduled", notice)
}

// SessionCompleted informs participants that a session was closed out.
func (c *Client) SessionCompleted(ctx context.Context, notice SessionNotice) error {
	return c.post(ctx, "/notify/session-completed", notice)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.Skip {
		return nil
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notification service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification service error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// Health checks if the notification service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification service unhealthy: %s", resp.Status)
	}
	return nil
}
