package management

import (
	"encoding/json"
	"time"

	"alertflow/internal/rules"
)

type CreateRuleRequest struct {
	ID          string                 `json:"id"`
	ModuleName  string                 `json:"module_name" binding:"required"`
	RuleName    string                 `json:"rule_name" binding:"required"`
	Description string                 `json:"description"`
	Conditions  json.RawMessage        `json:"conditions" binding:"required"`
	Actions     rules.Actions          `json:"actions"`
	Severity    rules.Severity         `json:"severity"`
	Priority    int                    `json:"priority"`
	Enabled     *bool                  `json:"enabled"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// UpdateRuleRequest changes only the fields that are set.
type UpdateRuleRequest struct {
	ModuleName  *string                 `json:"module_name"`
	RuleName    *string                 `json:"rule_name"`
	Description *string                 `json:"description"`
	Conditions  json.RawMessage         `json:"conditions"`
	Actions     *rules.Actions          `json:"actions"`
	Severity    *rules.Severity         `json:"severity"`
	Priority    *int                    `json:"priority"`
	Enabled     *bool                   `json:"enabled"`
	Metadata    *map[string]interface{} `json:"metadata"`
}

type AuditLog struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	RuleID         string      `json:"rule_id"`
	Action         string      `json:"action"`
	OldValue       *rules.Rule `json:"old_value,omitempty"`
	NewValue       *rules.Rule `json:"new_value,omitempty"`
	ChangedBy      string      `json:"changed_by"`
	Timestamp      time.Time   `json:"timestamp"`
}
