package alerts

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusNew          Status = "new"
	StatusResolved     Status = "resolved"
)

// ErrDuplicateAlert is returned by Store.Create when an open alert with the same fingerprint
// already exists in the organization.
var ErrDuplicateAlert = errors.New("open alert with this fingerprint already exists")

type Alert struct {
	ID             string                 `json:"id" bson:"_id"`
	OrganizationID string                 `json:"organization_id" bson:"organization_id"`
	RuleID         string                 `json:"rule_id" bson:"rule_id"`
	Title          string                 `json:"title" bson:"title"`
	Description    string                 `json:"description" bson:"description"`
	Severity       string                 `json:"severity" bson:"severity"`
	Status         Status                 `json:"status" bson:"status"`
	Fingerprint    string                 `json:"fingerprint" bson:"fingerprint"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" bson:"updated_at"`
}

// Fingerprint identifies the logical occurrence an alert stands for: the rule alone, or the
// rule and the entity it fired for.
func Fingerprint(ruleID, entityID string) string {
	if entityID == "" {
		return ruleID
	}
	return ruleID + ":" + entityID
}
