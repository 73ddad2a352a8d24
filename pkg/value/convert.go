package value

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FromNative converts plain Go data into a canonical Value. It accepts the
// scalar, slice, and map shapes that the YAML and TOML decoders produce.
// Plain Go maps carry no declaration order, so their keys are sorted to keep
// the conversion deterministic; parsers that can recover source order build
// Maps directly instead of going through this function.
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float64:
		return Float(t)
	case time.Time:
		return String(t.Format(time.RFC3339))
	case []any:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = FromNative(item)
		}
		return out
	case []map[string]any:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = FromNative(item)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromNative(t[k]))
		}
		return m
	default:
		return String(fmt.Sprint(t))
	}
}
