// Package diagnostics forwards terminal-failure evidence to an operator
// notification channel. Artifacts stay in memory and are discarded once
// delivered.
package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notification is one message for an ntfy topic. When Attachment is set the
// bytes become the request body and the message travels alongside it.
type Notification struct {
	Title      string
	Message    string
	Priority   string
	Filename   string
	Attachment []byte
}

// NtfyClient publishes notifications to an ntfy server over plain HTTP.
type NtfyClient struct {
	baseURL string
	client  *http.Client
}

// NewNtfyClient creates a client for the given ntfy base URL.
func NewNtfyClient(baseURL string, timeout time.Duration) *NtfyClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Push posts the notification to the topic.
func (c *NtfyClient) Push(ctx context.Context, topic string, n Notification) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("ntfy base url is not configured")
	}
	if topic == "" {
		return fmt.Errorf("ntfy topic is required")
	}

	endpoint := c.baseURL + "/" + url.PathEscape(topic)
	body := []byte(n.Message)
	if len(n.Attachment) > 0 {
		// The attachment occupies the body, and headers cannot carry
		// multi-line captions, so the message rides a query parameter.
		body = n.Attachment
		q := url.Values{}
		if n.Message != "" {
			q.Set("message", n.Message)
		}
		if n.Filename != "" {
			q.Set("filename", n.Filename)
		}
		if encoded := q.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	if n.Title != "" {
		req.Header.Set("Title", n.Title)
	}
	if n.Priority != "" {
		req.Header.Set("Priority", n.Priority)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
