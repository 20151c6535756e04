// Package notify posts plain-text alerts to an ntfy-style HTTP endpoint.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const sendTimeout = 5 * time.Second

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Notifier reports dead content to an endpoint without blocking the caller.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, client *http.Client) *Notifier {
	return &Notifier{endpoint: endpoint, client: client}
}

// ContentGone announces that the content of container id died.
func (n *Notifier) ContentGone(id int, reason string) {
	n.post(fmt.Sprintf("tabshell: tab container %d content gone (%s)", id, reason))
}

// FrameGone announces that the UI frame died.
func (n *Notifier) FrameGone(reason string) {
	n.post(fmt.Sprintf("tabshell: UI frame gone (%s)", reason))
}

func (n *Notifier) post(message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := Send(ctx, n.client, n.endpoint, message); err != nil {
			slog.Warn("notification failed", "endpoint", n.endpoint, "error", err)
		}
	}()
}
