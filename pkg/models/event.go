package models

import "time"

// Event is a domain event submitted for rule evaluation, over Kafka or HTTP.
type Event struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	OrganizationID string                 `json:"organization_id"`
	ModuleName     string                 `json:"module_name"`
	UserID         string                 `json:"user_id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Data           map[string]interface{} `json:"data"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ExecuteActions *bool                  `json:"execute_actions,omitempty"`
}

// ShouldExecuteActions defaults to true for events that do not say otherwise.
func (e *Event) ShouldExecuteActions() bool {
	return e.ExecuteActions == nil || *e.ExecuteActions
}

func (e *Event) GetDataField(name string) (interface{}, bool) {
	if e.Data == nil {
		return nil, false
	}
	value, ok := e.Data[name]
	return value, ok
}

// RuleUpdateEvent tells running engines that rules of a scope changed. An empty ModuleName
// means every module of the organization; an empty OrganizationID means everything.
type RuleUpdateEvent struct {
	OrganizationID string    `json:"organization_id,omitempty"`
	ModuleName     string    `json:"module_name,omitempty"`
	RuleID         string    `json:"rule_id,omitempty"`
	Action         string    `json:"action"`
	Timestamp      time.Time `json:"timestamp"`
	ChangedBy      string    `json:"changed_by,omitempty"`
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)
