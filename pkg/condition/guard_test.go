package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf() Node {
	return LeafNode("qty", OpGreater, 1)
}

func nest(depth int) Node {
	node := leaf()
	for i := 0; i < depth; i++ {
		node = AllOf(node)
	}
	return node
}

func TestGuard_Validate(t *testing.T) {
	g := DefaultGuard()

	many := make([]Node, 11)
	for i := range many {
		many[i] = leaf()
	}
	ten := many[:10]

	both := AllOf(leaf())
	orChildren := []Node{leaf()}
	both.OR = &orChildren

	tests := []struct {
		name    string
		node    Node
		wantErr error
	}{
		{"single leaf", leaf(), nil},
		{"three levels", nest(3), nil},
		{"depth four", nest(4), ErrMaxDepth},
		{"both AND and OR", both, ErrAmbiguousGroup},
		{"eleven AND entries", AllOf(many...), ErrTooManyConditions},
		{"ten AND entries", AllOf(ten...), nil},
		{"empty OR", AnyOf(), ErrEmptyGroup},
		{"empty AND nested", AllOf(leaf(), AnyOf()), ErrEmptyGroup},
		{"ambiguous nested", AnyOf(leaf(), both), ErrAmbiguousGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.node, 0)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGuard_CustomLimits(t *testing.T) {
	g := Guard{MaxDepth: 1, MaxConditions: 2}

	assert.NoError(t, g.Validate(nest(1), 0))
	assert.ErrorIs(t, g.Validate(nest(2), 0), ErrMaxDepth)
	assert.ErrorIs(t, g.Validate(AllOf(leaf(), leaf(), leaf()), 0), ErrTooManyConditions)
}

func TestGuard_StartingDepth(t *testing.T) {
	g := DefaultGuard()
	assert.ErrorIs(t, g.Validate(leaf(), 4), ErrMaxDepth)
	assert.NoError(t, g.Validate(leaf(), 3))
}

func TestGuard_Parse(t *testing.T) {
	g := DefaultGuard()

	t.Run("valid tree", func(t *testing.T) {
		node, cond, err := g.Parse([]byte(`{"AND":[{"field":"status","operator":"=","value":"ready"},{"field":"payment_status","operator":"!=","value":"paid"}]}`))
		require.NoError(t, err)
		require.NotNil(t, node.AND)
		assert.Len(t, *node.AND, 2)

		group, ok := cond.(Group)
		require.True(t, ok)
		assert.Equal(t, GroupAnd, group.Op)
	})

	t.Run("both keys rejected at decode", func(t *testing.T) {
		_, _, err := g.Parse([]byte(`{"AND":[{"field":"a","operator":"=","value":1}],"OR":[{"field":"b","operator":"=","value":1}]}`))
		assert.ErrorIs(t, err, ErrAmbiguousGroup)
	})

	t.Run("unknown operator", func(t *testing.T) {
		_, _, err := g.Parse([]byte(`{"field":"a","operator":"~","value":1}`))
		assert.ErrorIs(t, err, ErrInvalidLeaf)
	})

	t.Run("missing field", func(t *testing.T) {
		_, _, err := g.Parse([]byte(`{"operator":"=","value":1}`))
		assert.ErrorIs(t, err, ErrInvalidLeaf)
	})

	t.Run("dynamic operand", func(t *testing.T) {
		node, cond, err := g.Parse([]byte(`{"field":"active","operator":">","value":{"field":"capacity","multiplier":0.8}}`))
		require.NoError(t, err)
		require.NotNil(t, node.Value.Dynamic)
		assert.Equal(t, "capacity", node.Value.Dynamic.Field)
		require.NotNil(t, node.Value.Dynamic.Multiplier)
		assert.Equal(t, 0.8, *node.Value.Dynamic.Multiplier)
		assert.Nil(t, node.Value.Dynamic.Offset)

		_, ok := cond.(Leaf)
		assert.True(t, ok)
	})

	t.Run("null literal", func(t *testing.T) {
		node, _, err := g.Parse([]byte(`{"field":"a","operator":"!=","value":null}`))
		require.NoError(t, err)
		assert.True(t, node.Value.Literal.IsNull())
	})

	t.Run("malformed json", func(t *testing.T) {
		_, _, err := g.Parse([]byte(`{"field":`))
		assert.Error(t, err)
	})
}
