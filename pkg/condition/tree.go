package condition

import (
	"encoding/json"
	"fmt"
)

// Condition is a compiled condition tree node.
type Condition interface {
	Evaluate(e *Evaluator, data map[string]interface{}) bool
}

// Leaf compares one payload field against an operand.
type Leaf struct {
	Field    string
	Operator Operator
	Value    Operand
}

func (l Leaf) Evaluate(e *Evaluator, data map[string]interface{}) bool {
	return e.evaluateLeaf(l, data)
}

type GroupOp uint8

const (
	GroupInvalid GroupOp = iota
	GroupAnd
	GroupOr
)

func (op GroupOp) String() string {
	switch op {
	case GroupAnd:
		return "AND"
	case GroupOr:
		return "OR"
	default:
		return "INVALID"
	}
}

// Group combines children with AND or OR.
type Group struct {
	Op       GroupOp
	Children []Condition
}

func (g Group) Evaluate(e *Evaluator, data map[string]interface{}) bool {
	return e.EvaluateComplex(g, data)
}

// Compile converts a stored node into its typed form. It does not enforce depth or breadth
// limits; run Guard.Validate first.
func Compile(node Node) (Condition, error) {
	if node.AND != nil && node.OR != nil {
		return nil, ErrAmbiguousGroup
	}

	if node.IsComplex() {
		op, children := GroupAnd, node.AND
		if children == nil {
			op, children = GroupOr, node.OR
		}
		if len(*children) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyGroup, op)
		}

		group := Group{Op: op, Children: make([]Condition, 0, len(*children))}
		for i, child := range *children {
			compiled, err := Compile(child)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
			}
			group.Children = append(group.Children, compiled)
		}
		return group, nil
	}

	if node.Field == "" {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidLeaf)
	}
	if !node.Operator.Valid() {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidLeaf, node.Operator)
	}
	if node.Value.Dynamic != nil && node.Value.Dynamic.Field == "" {
		return nil, fmt.Errorf("%w: dynamic value field is required", ErrInvalidLeaf)
	}

	return Leaf{Field: node.Field, Operator: node.Operator, Value: node.Value}, nil
}

func jsonUnmarshal(data []byte, node *Node) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, hasAnd := probe["AND"]
	_, hasOr := probe["OR"]
	if hasAnd && hasOr {
		return ErrAmbiguousGroup
	}
	return json.Unmarshal(data, node)
}
