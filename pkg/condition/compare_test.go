package condition

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"alertflow/internal/logger"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(logger.NopLogger())
}

func TestCompare_MissingActual(t *testing.T) {
	e := newTestEvaluator()
	ops := []Operator{OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual, OpBetween, OpIn}
	expectations := []Value{
		Number(5),
		String("x"),
		Bool(true),
		Array(Number(1), Number(2)),
		Null(),
	}

	for _, actual := range []Value{Missing(), Null()} {
		for _, op := range ops {
			for _, expected := range expectations {
				name := fmt.Sprintf("%s %s %s", actual.Kind(), op, expected.Kind())
				want := op == OpNotEqual && !expected.IsNull()
				assert.Equal(t, want, e.Compare(actual, op, expected), name)
			}
		}
	}
}

func TestCompare_Numeric(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		actual   Value
		op       Operator
		expected Value
		want     bool
	}{
		{"greater", Number(21), OpGreater, Number(20), true},
		{"greater equal boundary", Number(20), OpGreater, Number(20), false},
		{"less", Number(1), OpLess, Number(2), true},
		{"greater or equal", Number(20), OpGreaterEqual, Number(20), true},
		{"less or equal", Number(19.5), OpLessEqual, Number(20), true},
		{"equal", Number(3), OpEqual, Number(3), true},
		{"not equal", Number(3), OpNotEqual, Number(4), true},
		{"numeric string vs number", String("21.5"), OpGreater, Number(20), true},
		{"number vs numeric string", Number(10), OpEqual, String(" 10 "), true},
		{"both numeric strings", String("9"), OpLess, String("10"), true},
		{"numeric string equality", String("1.0"), OpEqual, String("1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Compare(tt.actual, tt.op, tt.expected))
		})
	}
}

func TestCompare_NonNumericFallback(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		actual   Value
		op       Operator
		expected Value
		want     bool
	}{
		{"string equal", String("ready"), OpEqual, String("ready"), true},
		{"string not equal", String("pending"), OpNotEqual, String("paid"), true},
		{"string not equal same", String("paid"), OpNotEqual, String("paid"), false},
		{"string greater", String("b"), OpGreater, String("a"), true},
		{"string less", String("a"), OpLess, String("b"), true},
		{"bool equal", Bool(true), OpEqual, Bool(true), true},
		{"bool vs string", Bool(true), OpEqual, String("true"), false},
		{"string vs number never equal", String("abc"), OpEqual, Number(5), false},
		{"string vs number not equal", String("abc"), OpNotEqual, Number(5), true},
		{"string vs number greater", String("abc"), OpGreater, Number(5), false},
		{"present vs null not equal", String("x"), OpNotEqual, Null(), true},
		{"present vs null equal", String("x"), OpEqual, Null(), false},
		{"array equal", Array(String("a")), OpEqual, Array(String("a")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Compare(tt.actual, tt.op, tt.expected))
		})
	}
}

// >= and <= have no string fallback; this locks the current behavior in.
func TestCompare_OrderingEqualOperatorsRequireNumbers(t *testing.T) {
	e := newTestEvaluator()

	assert.False(t, e.Compare(String("b"), OpGreaterEqual, String("a")))
	assert.False(t, e.Compare(String("a"), OpLessEqual, String("b")))
	assert.False(t, e.Compare(String("a"), OpGreaterEqual, String("a")))
	assert.False(t, e.Compare(String("a"), OpLessEqual, String("a")))
	assert.True(t, e.Compare(String("2"), OpGreaterEqual, String("1")))
}

func TestCompare_Between(t *testing.T) {
	e := newTestEvaluator()

	tests := []struct {
		name     string
		actual   Value
		expected Value
		want     bool
	}{
		{"inside", Number(5), Array(Number(1), Number(10)), true},
		{"lower bound inclusive", Number(1), Array(Number(1), Number(10)), true},
		{"upper bound inclusive", Number(10), Array(Number(1), Number(10)), true},
		{"outside", Number(11), Array(Number(1), Number(10)), false},
		{"numeric strings", String("5"), Array(String("1"), String("10")), true},
		{"min greater than max", Number(5), Array(Number(10), Number(1)), false},
		{"not an array", Number(5), Number(10), false},
		{"wrong length", Number(5), Array(Number(1), Number(5), Number(10)), false},
		{"non numeric bound", Number(5), Array(String("a"), Number(10)), false},
		{"non numeric actual", String("x"), Array(Number(1), Number(10)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Compare(tt.actual, OpBetween, tt.expected))
		})
	}
}

func TestCompare_BetweenInvertedRangeNeverMatches(t *testing.T) {
	e := newTestEvaluator()
	for v := -5.0; v <= 15; v += 0.5 {
		assert.False(t, e.Compare(Number(v), OpBetween, Array(Number(10), Number(1))), "value %v", v)
	}
}

func TestCompare_In(t *testing.T) {
	e := newTestEvaluator()

	assert.True(t, e.Compare(String("b"), OpIn, Array(String("a"), String("b"))))
	assert.False(t, e.Compare(String("c"), OpIn, Array(String("a"), String("b"))))
	assert.True(t, e.Compare(Number(2), OpIn, Array(Number(1), Number(2))))
	assert.False(t, e.Compare(String("2"), OpIn, Array(Number(1), Number(2))), "membership is strict")
	assert.False(t, e.Compare(String("a"), OpIn, String("a")), "non-array list")
}

func TestCompare_InSmallAndLargeListsAgree(t *testing.T) {
	e := newTestEvaluator()

	build := func(n int) Value {
		items := make([]Value, n)
		for i := range items {
			items[i] = String(fmt.Sprintf("sku-%d", i))
		}
		return Array(items...)
	}

	small := build(50)
	large := build(500)

	candidates := []Value{String("sku-0"), String("sku-49"), String("sku-50"), String("other"), Number(3)}
	for _, c := range candidates {
		inSmall := e.Compare(c, OpIn, small)
		inLarge := e.Compare(c, OpIn, large)
		if c.Key() == String("sku-50").Key() {
			assert.False(t, inSmall)
			assert.True(t, inLarge)
			continue
		}
		assert.Equal(t, inSmall, inLarge, "candidate %s", c.Key())
	}

	negZero := Number(math.Copysign(0, -1))
	assert.Equal(t, Number(0).Key(), negZero.Key())

	zeroSmall := Array(Number(0), String("sku-1"))
	zeroLarge := Array(append(build(500).Items(), Number(0))...)
	assert.True(t, e.Compare(negZero, OpIn, zeroSmall))
	assert.True(t, e.Compare(negZero, OpIn, zeroLarge), "-0 matches 0 in a cached list")
	assert.True(t, e.Compare(Number(0), OpIn, Array(append(build(500).Items(), negZero)...)))

	assert.Equal(t, 2, e.SetCache().Len(), "lists differing only by the sign of zero share a set")
}

func TestCompare_LargeInListIsCachedAndClearable(t *testing.T) {
	e := newTestEvaluator()

	items := make([]Value, 150)
	for i := range items {
		items[i] = Number(float64(i))
	}
	list := Array(items...)

	assert.True(t, e.Compare(Number(149), OpIn, list))
	assert.True(t, e.Compare(Number(0), OpIn, list))
	assert.False(t, e.Compare(Number(150), OpIn, list))
	assert.Equal(t, 1, e.SetCache().Len())

	e.SetCache().Clear()
	assert.Equal(t, 0, e.SetCache().Len())
	assert.True(t, e.Compare(Number(10), OpIn, list))
}
