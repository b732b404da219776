package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alertflow/internal/constants"
	"alertflow/pkg/retry"
)

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color     string `json:"color"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
	Footer    string `json:"footer,omitempty"`
}

// SlackChannel posts to an incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
	policy     retry.Policy
}

func NewSlackChannel(webhookURL string, timeout time.Duration, policy retry.Policy) *SlackChannel {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		policy:     policy,
	}
}

func (s *SlackChannel) Name() string {
	return constants.ChannelSlack
}

func (s *SlackChannel) Send(ctx context.Context, n Notification) error {
	msg := slackMessage{
		Text: fmt.Sprintf("[%s] %s", n.Severity, n.Title),
		Attachments: []slackAttachment{{
			Color:     severityColor(n.Severity),
			Title:     n.Title,
			TitleLink: n.Link,
			Text:      n.Message,
			Footer:    n.RuleID,
		}},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	return retry.Retry(ctx, s.policy, func() error {
		return postJSON(ctx, s.client, s.webhookURL, body)
	})
}

func severityColor(severity string) string {
	switch severity {
	case "critical", "error":
		return "danger"
	case "warning":
		return "warning"
	default:
		return "good"
	}
}
