// Package normalize reads loosely shaped activity content. Content arrives as
// a JSON string, a decoded JSON object or a YAML mapping, and the same value
// may live under several field names. Each lookup here is total: it reports
// whether something usable was found and never panics on odd input.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Extractor pulls one candidate value out of content.
type Extractor func(v any) (any, bool)

// Decode returns content as generic maps and slices. Strings holding JSON are
// parsed; anything unparseable becomes nil.
func Decode(raw any) any {
	switch t := raw.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil
		}
		return canonical(out)
	case []byte:
		return Decode(string(t))
	case json.RawMessage:
		return Decode(string(t))
	default:
		return canonical(raw)
	}
}

// canonical copies v, converting map[any]any (older YAML decoders) into
// map[string]any so lookups only need to handle one map type. The input is
// never modified; catalog content is shared between sessions.
func canonical(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = canonical(e)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			if ks, ok := k.(string); ok {
				m[ks] = canonical(e)
			}
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = canonical(e)
		}
		return l
	default:
		return v
	}
}

// Key returns an extractor for a dotted path such as "algorithm.steps".
func Key(path string) Extractor {
	keys := strings.Split(path, ".")
	return func(v any) (any, bool) {
		return Path(v, keys...)
	}
}

// Self is an extractor that yields the content itself.
func Self(v any) (any, bool) {
	return v, v != nil
}

// Path walks nested maps by key.
func Path(v any, keys ...string) (any, bool) {
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// FirstOf tries extractors in order and returns the first value accept
// approves. A nil accept approves any present value.
func FirstOf(v any, accept func(any) bool, extractors ...Extractor) (any, bool) {
	for _, ex := range extractors {
		got, ok := ex(v)
		if !ok {
			continue
		}
		if accept == nil || accept(got) {
			return got, true
		}
	}
	return nil, false
}

// List reports whether v is a slice.
func List(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// IsNonEmptyList is an accept func for FirstOf.
func IsNonEmptyList(v any) bool {
	l, ok := v.([]any)
	return ok && len(l) > 0
}

// Number reads a numeric value from numbers, numeric strings, or objects
// carrying a "value" field.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case map[string]any:
		if inner, ok := t["value"]; ok {
			return Number(inner)
		}
	}
	return 0, false
}

// Numbers reads a list of numbers, skipping entries that are not numeric.
// It reports false when nothing numeric was found.
func Numbers(v any) ([]float64, bool) {
	l, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(l))
	for _, e := range l {
		if f, ok := Number(e); ok {
			out = append(out, f)
		}
	}
	return out, len(out) > 0
}

// Ints is Numbers truncated to integers, used for index lists.
func Ints(v any) ([]int, bool) {
	fs, ok := Numbers(v)
	if !ok {
		return nil, false
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out, true
}

// Int reads a single integer.
func Int(v any) (int, bool) {
	f, ok := Number(v)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// String reads a string, formatting numbers when needed.
func String(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// StringAt returns the first non-empty string found under any of keys.
func StringAt(v any, keys ...string) string {
	for _, k := range keys {
		raw, ok := Path(v, strings.Split(k, ".")...)
		if !ok {
			continue
		}
		if s, ok := String(raw); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IntAt returns the first integer found under any of keys.
func IntAt(v any, keys ...string) (int, bool) {
	for _, k := range keys {
		raw, ok := Path(v, strings.Split(k, ".")...)
		if !ok {
			continue
		}
		if n, ok := Int(raw); ok {
			return n, true
		}
	}
	return 0, false
}
