package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"badgetrack/internal/attendance"
)

// Client calls the mail relay sidecar that emails attendance updates. The
// pipeline treats it as a fire-and-forget observer: delivery failures are
// logged and never block record processing.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set all sends are swallowed locally,
// which is the default for dev environments without a relay.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health checks relay connectivity.
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
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier unhealthy: %s", resp.Status)
	}
	return nil
}

// CheckInRecorded notifies that a check-in was written.
func (c *Client) CheckInRecorded(ctx context.Context, key attendance.Key) {
	c.send(ctx, "checkin", key)
}

// CheckOutRecorded notifies that a check-out was written.
func (c *Client) CheckOutRecorded(ctx context.Context, key attendance.Key) {
	c.send(ctx, "checkout", key)
}

func (c *Client) send(ctx context.Context, kind string, key attendance.Key) {
	if c.Skip {
		return
	}
	body, _ := json.Marshal(map[string]string{
		"kind":       kind,
		"event_id":   key.EventID,
		"session_id": key.SessionID,
		"student_id": key.StudentID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/notify", bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: building %s request failed: %v", kind, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Printf("notify: %s notification failed: %v", kind, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		log.Printf("notify: %s notification rejected %s: %s", kind, resp.Status, string(msg))
	}
}
