package condition

import (
	"alertflow/internal/logger"
)

// DefaultSetThreshold is the "in" list length from which membership goes through SetCache.
const DefaultSetThreshold = 100

type Option func(*Evaluator)

func WithSetThreshold(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.setThreshold = n
		}
	}
}

func WithSetCache(c *SetCache) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.sets = c
		}
	}
}

// Evaluator evaluates compiled conditions. It is safe for concurrent use; the only shared
// state is the set cache.
type Evaluator struct {
	sets         *SetCache
	setThreshold int
	logger       logger.Logger
}

func NewEvaluator(log logger.Logger, opts ...Option) *Evaluator {
	if log == nil {
		log = logger.NopLogger()
	}
	e := &Evaluator{
		sets:         NewSetCache(),
		setThreshold: DefaultSetThreshold,
		logger:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) SetCache() *SetCache {
	return e.sets
}

func (e *Evaluator) EvaluateCondition(c Condition, data map[string]interface{}) bool {
	if c == nil {
		return false
	}
	return c.Evaluate(e, data)
}

// EvaluateComplex short-circuits: AND stops at the first false child, OR at the first true one.
func (e *Evaluator) EvaluateComplex(g Group, data map[string]interface{}) bool {
	switch g.Op {
	case GroupAnd:
		for _, child := range g.Children {
			if !e.EvaluateCondition(child, data) {
				return false
			}
		}
		return true
	case GroupOr:
		for _, child := range g.Children {
			if e.EvaluateCondition(child, data) {
				return true
			}
		}
		return false
	default:
		e.logger.Warnw("Condition group has neither AND nor OR, treating as no-match",
			"children", len(g.Children),
		)
		return false
	}
}

func (e *Evaluator) evaluateLeaf(l Leaf, data map[string]interface{}) bool {
	expected := l.Value.Resolve(data)
	if l.Value.Dynamic != nil && expected.IsMissing() {
		return false
	}
	actual := Extract(data, l.Field)
	return e.Compare(actual, l.Operator, expected)
}

// Compare applies op to actual and expected.
//
// A missing or null actual only matches "!=" against a non-null expected. ">=" and "<=" are
// numeric-only; non-numeric operands never match them.
func (e *Evaluator) Compare(actual Value, op Operator, expected Value) bool {
	if actual.IsAbsent() {
		return op == OpNotEqual && !expected.IsNull()
	}
	if expected.IsMissing() {
		return false
	}

	switch op {
	case OpBetween:
		return e.between(actual, expected)
	case OpIn:
		return e.in(actual, expected)
	}

	a, aNum := actual.AsNumber()
	b, bNum := expected.AsNumber()
	if aNum && bNum {
		switch op {
		case OpGreater:
			return a > b
		case OpLess:
			return a < b
		case OpGreaterEqual:
			return a >= b
		case OpLessEqual:
			return a <= b
		case OpEqual:
			return a == b
		case OpNotEqual:
			return a != b
		}
		return false
	}

	switch op {
	case OpEqual:
		return actual.StrictEqual(expected)
	case OpNotEqual:
		return !actual.StrictEqual(expected)
	case OpGreater, OpLess:
		as, aStr := actual.AsString()
		bs, bStr := expected.AsString()
		if !aStr || !bStr {
			return false
		}
		if op == OpGreater {
			return as > bs
		}
		return as < bs
	case OpGreaterEqual, OpLessEqual:
		e.logger.Warnw("Operator not supported for non-numeric operands",
			"operator", string(op),
			"actual_kind", actual.Kind().String(),
			"expected_kind", expected.Kind().String(),
		)
		return false
	default:
		e.logger.Warnw("Unknown operator", "operator", string(op))
		return false
	}
}

func (e *Evaluator) between(actual, expected Value) bool {
	if expected.Kind() != KindArray || len(expected.Items()) != 2 {
		e.logger.Warnw("Malformed between range, expected [min, max]",
			"expected_kind", expected.Kind().String(),
			"length", len(expected.Items()),
		)
		return false
	}

	lo, loOK := expected.Items()[0].AsNumber()
	hi, hiOK := expected.Items()[1].AsNumber()
	if !loOK || !hiOK {
		e.logger.Warnw("Between bounds are not numeric")
		return false
	}
	if lo > hi {
		e.logger.Warnw("Between range has min greater than max", "min", lo, "max", hi)
		return false
	}

	v, ok := actual.AsNumber()
	if !ok {
		return false
	}
	return lo <= v && v <= hi
}

func (e *Evaluator) in(actual, expected Value) bool {
	if expected.Kind() != KindArray {
		e.logger.Warnw("Operator in expects an array", "expected_kind", expected.Kind().String())
		return false
	}

	items := expected.Items()
	if len(items) < e.setThreshold {
		for _, item := range items {
			if actual.StrictEqual(item) {
				return true
			}
		}
		return false
	}

	return e.sets.Contains(expected, actual)
}
