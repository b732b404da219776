package condition

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a loosely-typed operand resolved from an event payload or a rule literal.
// The zero Value is Missing.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	arr  []Value
	obj  map[string]interface{}
}

func Missing() Value             { return Value{} }
func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Number(f float64) Value     { return Value{kind: KindNumber, num: f} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// FromAny classifies a decoded JSON/YAML/Go value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Array(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Array(items...)
	case map[string]interface{}:
		return Value{kind: KindObject, obj: t}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = FromAny(rv.Index(i).Interface())
		}
		return Array(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = iter.Value().Interface()
		}
		return Value{kind: KindObject, obj: obj}
	}

	return String(strings.TrimSpace(jsonString(v)))
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsAbsent() bool  { return v.kind == KindMissing || v.kind == KindNull }
func (v Value) Items() []Value  { return v.arr }

func (v Value) Fields() map[string]interface{} { return v.obj }

// AsNumber reports the numeric reading of v. Numbers are numeric when finite, strings when
// they parse as a finite float after trimming. Nothing else is numeric.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// StrictEqual compares without coercion: both sides must share a kind.
func (v Value) StrictEqual(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindMissing, KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].StrictEqual(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.Key() == other.Key()
	}
	return false
}

// Key is a canonical identity string; two values have the same key iff StrictEqual holds.
func (v Value) Key() string {
	switch v.kind {
	case KindMissing:
		return "u:"
	case KindNull:
		return "z:"
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindNumber:
		if v.num == 0 {
			return "n:0"
		}
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = strconv.Quote(item.Key())
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	case KindObject:
		return "o:" + canonicalObject(v.obj)
	}
	return ""
}

// String renders the value for message templates.
func (v Value) String() string {
	switch v.kind {
	case KindMissing:
		return ""
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return jsonString(v.Interface())
	}
}

// Interface converts back to plain Go values.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

func canonicalObject(obj map[string]interface{}) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(FromAny(obj[k]).Key()))
	}
	b.WriteByte('}')
	return b.String()
}

func jsonString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
