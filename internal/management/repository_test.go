package management

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/rules"
	"alertflow/internal/testinfra"
	"alertflow/pkg/condition"
	pkgerrors "alertflow/pkg/errors"
	"alertflow/pkg/models"
)

func TestPostgresRepositoryAndAudit(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := WithChangedBy(context.Background(), "carol")

	svc := NewService(NewRepository(db), nil, WithAudit(NewAuditLogger(db)))

	created, err := svc.CreateRule(ctx, "org-1", unpaidRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	req := unpaidRequest()
	req.ID = created.ID
	_, err = svc.CreateRule(ctx, "org-1", req)
	assert.True(t, pkgerrors.IsConflict(err))

	got, err := svc.GetRule(ctx, "org-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unpaid order", got.RuleName)
	assert.Equal(t, []string{"slack"}, got.Actions.Channels)
	assert.NoError(t, got.Validate(condition.DefaultGuard()))

	// Rules written here are what the engine reads.
	enabled, err := rules.NewPostgresSource(db).ListEnabled(ctx, rules.Scope{OrganizationID: "org-1", ModuleName: "orders"}, 10)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, created.ID, enabled[0].ID)

	_, err = svc.ToggleRule(ctx, "org-1", created.ID, false)
	require.NoError(t, err)

	enabled, err = rules.NewPostgresSource(db).ListEnabled(ctx, rules.Scope{OrganizationID: "org-1", ModuleName: "orders"}, 10)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := svc.ListRules(ctx, "org-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteRule(ctx, "org-1", created.ID))
	_, err = svc.GetRule(ctx, "org-1", created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	logs, err := svc.GetAuditLogs(ctx, "org-1", created.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, models.ActionDelete, logs[0].Action)
	assert.Equal(t, "carol", logs[0].ChangedBy)
	require.NotNil(t, logs[0].OldValue)
	assert.False(t, logs[0].OldValue.Enabled)
	assert.Equal(t, models.ActionCreate, logs[2].Action)
	assert.Nil(t, logs[2].OldValue)
}
