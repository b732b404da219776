package condition

import (
	"encoding/json"
	"fmt"
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpBetween      Operator = "between"
	OpIn           Operator = "in"
)

func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual, OpBetween, OpIn:
		return true
	}
	return false
}

// Node is the stored shape of a condition tree as it arrives from a rule row or an API body.
// It can structurally hold both AND and OR; Guard.Validate and Compile reject that.
type Node struct {
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    Operand  `json:"value"`
	AND      *[]Node  `json:"AND,omitempty"`
	OR       *[]Node  `json:"OR,omitempty"`
}

func (n Node) IsComplex() bool {
	return n.AND != nil || n.OR != nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsComplex() {
		out := make(map[string]interface{}, 2)
		if n.AND != nil {
			out["AND"] = *n.AND
		}
		if n.OR != nil {
			out["OR"] = *n.OR
		}
		return json.Marshal(out)
	}
	return json.Marshal(map[string]interface{}{
		"field":    n.Field,
		"operator": n.Operator,
		"value":    n.Value,
	})
}

// LeafNode builds a leaf node with a literal right-hand side.
func LeafNode(field string, op Operator, value interface{}) Node {
	return Node{Field: field, Operator: op, Value: Literal(value)}
}

// AllOf builds an AND node.
func AllOf(children ...Node) Node {
	return Node{AND: &children}
}

// AnyOf builds an OR node.
func AnyOf(children ...Node) Node {
	return Node{OR: &children}
}

// Operand is the right-hand side of a leaf: a literal or a value derived from another field.
type Operand struct {
	Literal Value
	Dynamic *DynamicValue
}

func Literal(v interface{}) Operand {
	return Operand{Literal: FromAny(v)}
}

func Dynamic(field string, multiplier, offset *float64) Operand {
	return Operand{Dynamic: &DynamicValue{Field: field, Multiplier: multiplier, Offset: offset}}
}

// Resolve returns the expected value for a comparison against data.
func (o Operand) Resolve(data map[string]interface{}) Value {
	if o.Dynamic != nil {
		return o.Dynamic.Resolve(data)
	}
	return o.Literal
}

func (o Operand) MarshalJSON() ([]byte, error) {
	if o.Dynamic != nil {
		return json.Marshal(o.Dynamic)
	}
	return json.Marshal(o.Literal)
}

func (o *Operand) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		if _, isField := obj["field"].(string); isField {
			var dv DynamicValue
			if err := json.Unmarshal(data, &dv); err != nil {
				return fmt.Errorf("invalid dynamic value: %w", err)
			}
			*o = Operand{Dynamic: &dv}
			return nil
		}
	}

	*o = Operand{Literal: FromAny(raw)}
	return nil
}

// DynamicValue derives the comparison operand from another field of the same payload:
// extract(field) * multiplier + offset.
type DynamicValue struct {
	Field      string   `json:"field"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Offset     *float64 `json:"offset,omitempty"`
}

// Resolve returns Missing when the base field is absent or not numeric.
func (d DynamicValue) Resolve(data map[string]interface{}) Value {
	base, ok := Extract(data, d.Field).AsNumber()
	if !ok {
		return Missing()
	}

	multiplier := 1.0
	if d.Multiplier != nil {
		multiplier = *d.Multiplier
	}
	offset := 0.0
	if d.Offset != nil {
		offset = *d.Offset
	}

	return Number(base*multiplier + offset)
}
