package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/carlmjohnson/requests"

	"github.com/t77yq/trendloop/internal/httpclient"
	"github.com/t77yq/trendloop/internal/model"
)

// WebhookChannel posts alerts to a Slack/Discord compatible webhook
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a webhook channel; client may be nil
func NewWebhookChannel(url string, client *http.Client) *WebhookChannel {
	if client == nil {
		client = httpclient.New(0)
	}
	return &WebhookChannel{url: url, client: client}
}

// Send posts {"content": "[TrendLoop Server] <message>"}
func (c *WebhookChannel) Send(ctx context.Context, alert *model.Alert) error {
	err := requests.URL(c.url).
		Client(c.client).
		Method(http.MethodPost).
		BodyJSON(map[string]string{"content": "[TrendLoop Server] " + alert.Message}).
		AddValidator(httpclient.ExpectStatus(http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent)).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	return nil
}

// FileChannel appends alerts to a plain-text log
type FileChannel struct {
	w  io.Writer
	mu sync.Mutex
}

// NewFileChannel creates a channel appending to w
func NewFileChannel(w io.Writer) *FileChannel {
	return &FileChannel{w: w}
}

// Send appends "[<time> UTC] ALERT: <message>"
func (c *FileChannel) Send(_ context.Context, alert *model.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] ALERT: %s\n", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"), alert.Message)
	if _, err := io.WriteString(c.w, line); err != nil {
		return fmt.Errorf("failed to write alert log: %w", err)
	}
	return nil
}
