package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/testinfra"
	"alertflow/pkg/condition"
)

func TestPostgresSource(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()

	insert := `
		INSERT INTO alert_rules (id, organization_id, module_name, rule_name, conditions, actions, severity, enabled, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.ExecContext(ctx, insert, "surge", "org-1", "kitchen", "Capacity surge",
		`{"field":"weighted_load","operator":">","value":20}`,
		`{"title_template":"Load {weighted_load}","channels":["slack"]}`, "warning", true, 1)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "handover", "org-1", "kitchen", "Unpaid handover",
		`{"AND":[{"field":"status","operator":"=","value":"ready"},{"field":"payment_status","operator":"!=","value":"paid"}]}`,
		`{}`, "critical", true, 10)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "off", "org-1", "kitchen", "Disabled",
		`{"field":"x","operator":"=","value":1}`, `{}`, "info", false, 99)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "stock", "org-1", "inventory", "Low stock",
		`{"field":"qty","operator":"<","value":{"field":"reorder_level","multiplier":1.5}}`, `{}`, "info", true, 0)
	require.NoError(t, err)

	src := NewPostgresSource(db)

	rules, err := src.ListEnabled(ctx, Scope{OrganizationID: "org-1", ModuleName: "kitchen"}, 100)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "handover", rules[0].ID)
	assert.Equal(t, SeverityCritical, rules[0].Severity)
	require.NotNil(t, rules[0].Conditions.AND)
	assert.Equal(t, "surge", rules[1].ID)
	assert.Equal(t, []string{"slack"}, rules[1].Actions.Channels)
	assert.NoError(t, rules[1].Validate(condition.DefaultGuard()))

	rules, err = src.ListEnabled(ctx, Scope{OrganizationID: "org-1"}, 100)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	rules, err = src.ListEnabled(ctx, Scope{OrganizationID: "org-1", ModuleName: "inventory"}, 1)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].Conditions.Value.Dynamic)
	assert.Equal(t, "reorder_level", rules[0].Conditions.Value.Dynamic.Field)

	require.NoError(t, src.IncrementTriggerCount(ctx, "org-1", "surge"))
	var count int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT trigger_count FROM alert_rules WHERE id = 'surge'`).Scan(&count))
	assert.Equal(t, int64(1), count)
}

func TestPostgresSource_MalformedRowIsIsolated(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()

	insert := `
		INSERT INTO alert_rules (id, organization_id, module_name, rule_name, conditions, actions, severity, enabled, priority)
		VALUES ($1, 'org-1', 'inventory', $1, $2, $3, 'info', true, $4)
	`
	_, err := db.ExecContext(ctx, insert, "low-stock", `{"field":"qty","operator":"<","value":5}`, `{}`, 0)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "and-object", `{"AND":{"field":"qty"}}`, `{}`, 2)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "string-multiplier",
		`{"field":"qty","operator":"<","value":{"field":"reorder_level","multiplier":"2"}}`, `{}`, 1)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "channels-string", `{"field":"qty","operator":"<","value":5}`, `{"channels":"slack"}`, 3)
	require.NoError(t, err)

	rules, err := NewPostgresSource(db).ListEnabled(ctx, Scope{OrganizationID: "org-1", ModuleName: "inventory"}, 100)
	require.NoError(t, err)
	require.Len(t, rules, 4)

	guard := condition.DefaultGuard()
	for _, r := range rules {
		if r.ID == "low-stock" {
			assert.NoError(t, r.Validate(guard))
			continue
		}
		assert.Error(t, r.DecodeError(), r.ID)
		assert.Error(t, r.Validate(guard), r.ID)
	}
}
