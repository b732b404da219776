package notify

import (
	"context"
	"time"
)

// Notification is the channel-independent view of a new alert.
type Notification struct {
	AlertID        string                 `json:"alert_id"`
	OrganizationID string                 `json:"organization_id"`
	ModuleName     string                 `json:"module_name,omitempty"`
	RuleID         string                 `json:"rule_id"`
	RuleName       string                 `json:"rule_name,omitempty"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Severity       string                 `json:"severity"`
	Fingerprint    string                 `json:"fingerprint"`
	Link           string                 `json:"link,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`

	// Addressing taken from the rule actions; not part of the payload.
	WebhookURL string   `json:"-"`
	Recipients []string `json:"-"`
}

type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
