package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Input is the activation a computed field expression sees.
type Input struct {
	OrganizationID string
	ModuleName     string
	Timestamp      time.Time
	Data           map[string]interface{}
}

func (in Input) vars() map[string]interface{} {
	data := in.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]interface{}{
		"organization_id": in.OrganizationID,
		"module_name":     in.ModuleName,
		"timestamp":       ts,
		"data":            data,
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("organization_id", cel.StringType),
		cel.Variable("module_name", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// Evaluate runs a compiled program and returns a scalar result: bool, float64, string or nil.
// Integers are widened to float64 so they compare like JSON numbers.
func (e *Evaluator) Evaluate(ctx context.Context, program cel.Program, in Input) (interface{}, error) {
	result, _, err := program.ContextEval(ctx, in.vars())
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	switch v := result.Value().(type) {
	case bool, float64, string:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}

	if result.Type() == types.NullType {
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported CEL result type %v", result.Type())
}

// EvaluateExpression compiles and runs expression in one step.
func (e *Evaluator) EvaluateExpression(ctx context.Context, expression string, in Input) (interface{}, error) {
	program, err := e.CompileExpression(expression)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, program, in)
}
