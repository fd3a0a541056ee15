// Package deep provides dotted-path access and value helpers for records decoded
// from JSON (nested map[string]any / []any trees).
package deep

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Get returns the value found at a dotted path such as "author.name" or "tags.0".
func Get(obj any, path string) (any, bool) {
	if path == "" {
		return obj, obj != nil
	}
	cur := obj
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dotted path inside m, creating intermediate maps as needed.
// Intermediate maps along the path are copied, so maps shared with other readers
// are never written to. The returned map is the new root.
func Set(m map[string]any, path string, value any) map[string]any {
	out := CloneMap(m)
	if out == nil {
		out = map[string]any{}
	}
	parts := strings.Split(path, ".")
	cur := out
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			break
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
		} else {
			next = CloneMap(next)
		}
		cur[part] = next
		cur = next
	}
	return out
}

// CloneMap returns a shallow copy of m. A nil map stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether v is falsy in the query sense: nil, "", false, or an
// empty map/slice. Zero numbers are not empty.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case float64:
		return math.IsNaN(val)
	}
	return false
}

// Clean returns a copy of m without empty values (see IsEmpty).
func Clean(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// IsSequence reports whether v is a JSON array after decoding.
func IsSequence(v any) bool {
	switch v.(type) {
	case []any, []map[string]any:
		return true
	}
	return false
}

// IsRecord reports whether v is a JSON object after decoding.
func IsRecord(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Equal compares two scalar values, treating every numeric representation
// (int, float64, json.Number) as the same number.
func Equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// IntID parses an identifier the way a loose integer parse would: numbers are
// truncated, strings must hold a base-10 integer.
func IntID(v any) (int64, bool) {
	if f, ok := number(v); ok {
		return int64(f), true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseValue reads user input as JSON, falling back to the raw string.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
