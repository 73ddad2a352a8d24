package value

import (
	"strconv"
	"strings"
)

// Kind identifies which variant of the closed value set a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the lower-case name of the kind, used as a type label in
// debug reports.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the closed tagged variant shared by all parsed configurations.
// The sealed method keeps the set of implementations fixed to this package.
type Value interface {
	Kind() Kind

	// Native converts the value into plain Go data (string, int64, float64,
	// bool, nil, []any, map[string]any) for binding as a template context.
	// The result is freshly allocated on every call, so callers may mutate
	// it without affecting the canonical tree.
	Native() any

	sealed()
}

// Null is the absent value.
type Null struct{}

func (Null) Kind() Kind  { return KindNull }
func (Null) Native() any { return nil }
func (Null) sealed()     {}

// String is a text value.
type String string

func (String) Kind() Kind    { return KindString }
func (s String) Native() any { return string(s) }
func (String) sealed()       {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind    { return KindBool }
func (b Bool) Native() any { return bool(b) }
func (Bool) sealed()       {}

// Number is a numeric value. Integers keep their exact int64 form so that
// rendering them does not reformat the source representation.
type Number struct {
	f     float64
	i     int64
	isInt bool
}

// Int wraps an integer as a Number.
func Int(i int64) Number { return Number{i: i, f: float64(i), isInt: true} }

// Float wraps a floating point value as a Number.
func Float(f float64) Number { return Number{f: f} }

func (Number) Kind() Kind { return KindNumber }

func (n Number) Native() any {
	if n.isInt {
		return n.i
	}
	return n.f
}

// IsInt reports whether the number was declared as an integer.
func (n Number) IsInt() bool { return n.isInt }

// String formats the number the way it would render in output text.
func (n Number) String() string {
	if n.isInt {
		return strconv.FormatInt(n.i, 10)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

func (Number) sealed() {}

// List is an ordered sequence of values.
type List []Value

func (List) Kind() Kind { return KindList }

func (l List) Native() any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v.Native()
	}
	return out
}

func (List) sealed() {}

// Map is a mapping from string keys to values that remembers the order in
// which keys were first set. Setting an existing key replaces the value in
// place without moving the key, which gives last-write-wins semantics for
// duplicate keys in source documents.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

func (*Map) Kind() Kind { return KindMap }

func (m *Map) Native() any {
	out := make(map[string]any, len(m.keys))
	for k, v := range m.vals {
		out[k] = v.Native()
	}
	return out
}

func (*Map) sealed() {}

// Set stores v under key, appending the key on first use. It reports
// whether an existing entry was replaced.
func (m *Map) Set(key string, v Value) bool {
	if _, ok := m.vals[key]; ok {
		m.vals[key] = v
		return true
	}
	m.keys = append(m.keys, key)
	m.vals[key] = v
	return false
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in declaration order. The returned slice is a copy.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Dump renders the tree as an indented, human-readable literal. It is the
// config-structure debug text shown alongside the parsed document.
func Dump(v Value) string {
	var b strings.Builder
	dump(&b, v, 0)
	return b.String()
}

func dump(b *strings.Builder, v Value, depth int) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case String:
		b.WriteString(strconv.Quote(string(t)))
	case Number:
		b.WriteString(t.String())
	case Bool:
		b.WriteString(strconv.FormatBool(bool(t)))
	case List:
		if len(t) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for _, item := range t {
			indent(b, depth+1)
			dump(b, item, depth+1)
			b.WriteString(",\n")
		}
		indent(b, depth)
		b.WriteByte(']')
	case *Map:
		if t == nil || t.Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for _, k := range t.keys {
			indent(b, depth+1)
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			dump(b, t.vals[k], depth+1)
			b.WriteString(",\n")
		}
		indent(b, depth)
		b.WriteByte('}')
	default:
		b.WriteString("<unprintable>")
	}
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}
