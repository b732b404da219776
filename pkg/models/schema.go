package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEvent(evt *Event) error {
	if evt == nil {
		return &ValidationError{
			Field:   "event",
			Message: "event cannot be nil",
		}
	}

	if evt.OrganizationID == "" {
		return &ValidationError{
			Field:   "organization_id",
			Message: "organization ID is required",
		}
	}

	if evt.ModuleName == "" {
		return &ValidationError{
			Field:   "module_name",
			Message: "module name is required",
		}
	}

	if evt.Data == nil {
		return &ValidationError{
			Field:   "data",
			Message: "event data cannot be nil",
		}
	}

	return nil
}

func ValidateRuleUpdateEvent(evt *RuleUpdateEvent) error {
	if evt == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}

	switch evt.Action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionToggle, ActionReload:
	default:
		return &ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("unknown action %q", evt.Action),
		}
	}

	if evt.ModuleName != "" && evt.OrganizationID == "" {
		return &ValidationError{
			Field:   "organization_id",
			Message: "module-scoped updates need an organization ID",
		}
	}

	return nil
}
