package management

import (
	"fmt"

	"alertflow/internal/constants"
	"alertflow/internal/rules"
	"alertflow/pkg/condition"
)

var validChannels = map[string]bool{
	constants.ChannelSlack:   true,
	constants.ChannelEmail:   true,
	constants.ChannelWebhook: true,
}

func validateActions(a rules.Actions) error {
	for _, ch := range a.Channels {
		if !validChannels[ch] {
			return fmt.Errorf("unknown channel %q. Allowed: slack, email, webhook", ch)
		}
		if ch == constants.ChannelWebhook && a.WebhookURL == "" {
			return fmt.Errorf("actions.webhook_url is required for the webhook channel")
		}
		if ch == constants.ChannelEmail && len(a.Recipients) == 0 {
			return fmt.Errorf("actions.recipients is required for the email channel")
		}
	}
	return nil
}

// ValidateRule checks a fully built rule before it is stored.
func ValidateRule(rule *rules.Rule, guard condition.Guard) error {
	if rule.ModuleName == "" {
		return fmt.Errorf("module_name is required")
	}
	if rule.RuleName == "" {
		return fmt.Errorf("rule_name is required")
	}
	if err := validateActions(rule.Actions); err != nil {
		return err
	}
	if err := rule.Validate(guard); err != nil {
		return err
	}
	if _, err := condition.Compile(rule.Conditions); err != nil {
		return fmt.Errorf("invalid conditions: %w", err)
	}
	return nil
}
