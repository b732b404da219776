package engine

import (
	"context"
	"time"

	"alertflow/internal/rules"
	"alertflow/pkg/condition"
)

// EvaluationContext carries the scope of one evaluation. Data is the enriched payload
// conditions run against.
type EvaluationContext struct {
	OrganizationID string                 `json:"organization_id"`
	ModuleName     string                 `json:"module_name"`
	Data           map[string]interface{} `json:"data"`
	Timestamp      time.Time              `json:"timestamp"`
	UserID         string                 `json:"user_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Result is the outcome of one rule against one payload.
type Result struct {
	RuleID         string                 `json:"rule_id"`
	RuleName       string                 `json:"rule_name"`
	OrganizationID string                 `json:"organization_id"`
	ModuleName     string                 `json:"module_name"`
	Triggered      bool                   `json:"triggered"`
	Severity       rules.Severity         `json:"severity"`
	Condition      condition.Node         `json:"condition"`
	AlertTitle     string                 `json:"alert_title,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Actions        rules.Actions          `json:"actions"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	EvaluatedAt    time.Time              `json:"evaluated_at"`
}

// EntityID returns the entity id resolved from the payload, if any.
func (r Result) EntityID() string {
	id, _ := r.Metadata[MetadataEntityID].(string)
	return id
}

const (
	MetadataEntityID = "entity_id"
	MetadataLink     = "link"
	MetadataUserID   = "user_id"
)

// Stats are cumulative counters of one engine.
type Stats struct {
	TotalEvaluated  int64         `json:"total_evaluated"`
	Triggered       int64         `json:"triggered"`
	Rejected        int64         `json:"rejected"`
	Errors          int64         `json:"errors"`
	LastDuration    time.Duration `json:"last_duration"`
	LastEvaluatedAt time.Time     `json:"last_evaluated_at"`
}

// Enricher merges computed fields into a payload before conditions run.
type Enricher interface {
	Enrich(ctx context.Context, organizationID, moduleName string, data map[string]interface{}) map[string]interface{}
}
