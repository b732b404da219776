package condition

import "strings"

// Extract resolves a dotted path against a record. Any missing, null or non-object
// intermediate segment yields Missing. Arrays are not indexed.
func Extract(record map[string]interface{}, path string) Value {
	if record == nil || path == "" {
		return Missing()
	}

	var current interface{} = record
	for _, segment := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return Missing()
		}
		next, exists := obj[segment]
		if !exists {
			return Missing()
		}
		current = next
	}

	return FromAny(current)
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, t != nil
	case Value:
		if t.kind == KindObject {
			return t.obj, true
		}
		return nil, false
	case map[string]string:
		obj := make(map[string]interface{}, len(t))
		for k, val := range t {
			obj[k] = val
		}
		return obj, true
	default:
		return nil, false
	}
}
