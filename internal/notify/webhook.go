package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertflow/internal/constants"
	"alertflow/pkg/retry"
)

var ErrNoWebhookURL = errors.New("rule has no webhook url")

// WebhookChannel POSTs the notification as JSON to the rule's webhook URL. Server errors and
// transport failures are retried; 4xx responses are not.
type WebhookChannel struct {
	client *http.Client
	policy retry.Policy
}

func NewWebhookChannel(timeout time.Duration, policy retry.Policy) *WebhookChannel {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &WebhookChannel{
		client: &http.Client{Timeout: timeout},
		policy: policy,
	}
}

func (w *WebhookChannel) Name() string {
	return constants.ChannelWebhook
}

func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	if n.WebhookURL == "" {
		return ErrNoWebhookURL
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return retry.Retry(ctx, w.policy, func() error {
		return postJSON(ctx, w.client, n.WebhookURL, body)
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return retry.NewFatalError(fmt.Errorf("endpoint returned status: %d", resp.StatusCode))
	default:
		return fmt.Errorf("endpoint returned status: %d", resp.StatusCode)
	}
}
