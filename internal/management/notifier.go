package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alertflow/internal/broker"
	"alertflow/pkg/models"
)

// RuleEventPublisher announces rule changes on the rule update topic so every running engine
// drops its cached rules for the scope.
type RuleEventPublisher struct {
	producer broker.Producer
	topic    string
}

func NewRuleEventPublisher(producer broker.Producer, topic string) *RuleEventPublisher {
	return &RuleEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *RuleEventPublisher) Publish(ctx context.Context, organizationID, moduleName, ruleID, action, changedBy string) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.RuleUpdateEvent{
		OrganizationID: organizationID,
		ModuleName:     moduleName,
		RuleID:         ruleID,
		Action:         action,
		Timestamp:      time.Now().UTC(),
		ChangedBy:      changedBy,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal rule update event: %w", err)
	}

	return p.producer.Publish(ctx, p.topic, []byte(organizationID), body)
}
