package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"alertflow/pkg/condition"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Actions describes what happens when a rule triggers.
type Actions struct {
	MessageTemplate string                 `json:"message_template,omitempty"`
	TitleTemplate   string                 `json:"title_template,omitempty"`
	Channels        []string               `json:"channels,omitempty"`
	WebhookURL      string                 `json:"webhook_url,omitempty"`
	Recipients      []string               `json:"recipients,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Link returns the optional alert link template from the action metadata.
func (a Actions) Link() string {
	if link, ok := a.Metadata["link"].(string); ok {
		return link
	}
	return ""
}

// Rule is a tenant-authored alert rule. The engine only reads rules.
type Rule struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	ModuleName     string                 `json:"module_name"`
	RuleName       string                 `json:"rule_name"`
	Description    string                 `json:"description,omitempty"`
	Conditions     condition.Node         `json:"conditions"`
	Actions        Actions                `json:"actions"`
	Severity       Severity               `json:"severity"`
	Enabled        bool                   `json:"enabled"`
	Priority       int                    `json:"priority"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`

	// decodeErr is set when a stored part of the rule could not be decoded. Such a rule is
	// still listed so that only it is rejected at evaluation time.
	decodeErr error
}

// DecodeError reports why a stored rule could not be fully decoded.
func (r Rule) DecodeError() error {
	return r.decodeErr
}

// Validate checks the rule shape that the engine depends on.
func (r Rule) Validate(g condition.Guard) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.decodeErr != nil {
		return fmt.Errorf("rule %s: %w", r.ID, r.decodeErr)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if err := g.Validate(r.Conditions, 0); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Scope identifies the rule set of one organization module.
type Scope struct {
	OrganizationID string
	ModuleName     string
}

func (s Scope) String() string {
	return s.OrganizationID + "/" + s.ModuleName
}

// decodeStored fills the JSON columns of a stored rule. A part that fails to decode is
// recorded on the rule instead of failing the whole listing.
func decodeStored(rule *Rule, conditions, actions, meta []byte) {
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		rule.Conditions = condition.Node{}
		rule.decodeErr = fmt.Errorf("failed to decode conditions: %w", err)
		return
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			rule.Actions = Actions{}
			rule.decodeErr = fmt.Errorf("failed to decode actions: %w", err)
			return
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rule.Metadata); err != nil {
			rule.Metadata = nil
			rule.decodeErr = fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
}
