package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	valid := NewEventBuilder().
		WithScope("org-1", "kitchen").
		WithData(map[string]interface{}{"active_orders": 12}).
		Build()

	require.NoError(t, ValidateEvent(valid))
	assert.NotEmpty(t, valid.ID)
	assert.False(t, valid.Timestamp.IsZero())
	assert.True(t, valid.ShouldExecuteActions())

	tests := []struct {
		name  string
		event *Event
		field string
	}{
		{"nil", nil, "event"},
		{"no organization", &Event{ModuleName: "kitchen", Data: map[string]interface{}{}}, "organization_id"},
		{"no module", &Event{OrganizationID: "org-1", Data: map[string]interface{}{}}, "module_name"},
		{"no data", &Event{OrganizationID: "org-1", ModuleName: "kitchen"}, "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(tt.event)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateRuleUpdateEvent(t *testing.T) {
	assert.NoError(t, ValidateRuleUpdateEvent(&RuleUpdateEvent{Action: ActionReload}))
	assert.NoError(t, ValidateRuleUpdateEvent(&RuleUpdateEvent{OrganizationID: "org-1", ModuleName: "kitchen", Action: ActionUpdate}))
	assert.Error(t, ValidateRuleUpdateEvent(&RuleUpdateEvent{Action: "rename"}))
	assert.Error(t, ValidateRuleUpdateEvent(&RuleUpdateEvent{ModuleName: "kitchen", Action: ActionUpdate}))
}
