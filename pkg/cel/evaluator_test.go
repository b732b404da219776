package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "weighted load",
			expr: `data.active_orders * 1.5 + data.pending_orders`,
		},
		{
			name: "module name",
			expr: `module_name == "kitchen"`,
		},
		{
			name:      "invalid expression",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `payload.status == "test"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	in := Input{
		OrganizationID: "org-1",
		ModuleName:     "kitchen",
		Data: map[string]interface{}{
			"active_orders":  10.0,
			"pending_orders": 6.0,
			"status":         "ready",
		},
	}

	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{name: "double arithmetic", expr: `data.active_orders * 1.5 + data.pending_orders`, want: 21.0},
		{name: "int widened", expr: `size(data)`, want: 3.0},
		{name: "bool", expr: `data.status == "ready"`, want: true},
		{name: "string", expr: `organization_id + "/" + module_name`, want: "org-1/kitchen"},
		{name: "null", expr: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(context.Background(), tt.expr, in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateExpression_Errors(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.EvaluateExpression(context.Background(), `data.missing * 2.0`, Input{})
	assert.Error(t, err, "missing key")

	_, err = eval.EvaluateExpression(context.Background(), `[1, 2]`, Input{})
	assert.Error(t, err, "lists are not scalar")
}
