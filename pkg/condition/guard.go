package condition

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxDepth      = 3
	DefaultMaxConditions = 10
)

var (
	ErrMaxDepth          = errors.New("condition nesting too deep")
	ErrAmbiguousGroup    = errors.New("condition has both AND and OR")
	ErrEmptyGroup        = errors.New("condition group is empty")
	ErrTooManyConditions = errors.New("condition group has too many entries")
	ErrInvalidLeaf       = errors.New("invalid leaf condition")
)

// Guard bounds the shape of tenant-authored condition trees before they are evaluated.
type Guard struct {
	MaxDepth      int
	MaxConditions int
}

func DefaultGuard() Guard {
	return Guard{MaxDepth: DefaultMaxDepth, MaxConditions: DefaultMaxConditions}
}

func (g Guard) limits() (int, int) {
	maxDepth, maxConditions := g.MaxDepth, g.MaxConditions
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxConditions <= 0 {
		maxConditions = DefaultMaxConditions
	}
	return maxDepth, maxConditions
}

// Validate walks node starting at depth. The root is depth 0.
func (g Guard) Validate(node Node, depth int) error {
	maxDepth, maxConditions := g.limits()

	if depth > maxDepth {
		return fmt.Errorf("%w: depth %d exceeds limit %d", ErrMaxDepth, depth, maxDepth)
	}

	if !node.IsComplex() {
		return nil
	}

	if node.AND != nil && node.OR != nil {
		return fmt.Errorf("%w at depth %d", ErrAmbiguousGroup, depth)
	}

	children := node.AND
	name := "AND"
	if children == nil {
		children = node.OR
		name = "OR"
	}

	if len(*children) == 0 {
		return fmt.Errorf("%w: %s at depth %d", ErrEmptyGroup, name, depth)
	}
	if len(*children) > maxConditions {
		return fmt.Errorf("%w: %s has %d entries, limit %d", ErrTooManyConditions, name, len(*children), maxConditions)
	}

	for i, child := range *children {
		if err := g.Validate(child, depth+1); err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i, err)
		}
	}

	return nil
}

// Parse decodes a JSON condition tree, validates it and compiles it.
func (g Guard) Parse(data []byte) (Node, Condition, error) {
	var node Node
	if err := jsonUnmarshal(data, &node); err != nil {
		return Node{}, nil, fmt.Errorf("failed to decode condition: %w", err)
	}
	if err := g.Validate(node, 0); err != nil {
		return Node{}, nil, err
	}
	cond, err := Compile(node)
	if err != nil {
		return Node{}, nil, err
	}
	return node, cond, nil
}
