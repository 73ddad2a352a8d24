package render

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// builtinFuncs is the fixed, vetted function allow-list available to
// templates. Every function is a pure transformation over its arguments;
// nothing here touches the filesystem, the network, or the clock.
func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		// String shaping
		"upper":     upper,
		"lower":     lower,
		"title":     title,
		"trim":      trim,
		"replace":   replace,
		"split":     split,
		"join":      join,
		"indent":    indentText,
		"quote":     quote,
		"repeat":    repeatText,
		"contains":  contains,
		"hasPrefix": hasPrefix,
		"hasSuffix": hasSuffix,

		// Collections and logic
		"default": defaultOf,
		"length":  length,
		"first":   first,
		"last":    last,
		"seq":     seq,
		"jsonify": jsonify,
	}
}

// str renders any template value as a string the way the engine would.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// truthy mirrors the template engine's notion of truth: zero values and
// empty containers are false.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return rv.Len() > 0
	default:
		return !rv.IsZero()
	}
}

// upper returns v upper-cased.
func upper(v any) string { return strings.ToUpper(str(v)) }

// lower returns v lower-cased.
func lower(v any) string { return strings.ToLower(str(v)) }

// title capitalizes each word of v.
func title(v any) string { return cases.Title(language.Und).String(str(v)) }

// trim removes leading and trailing whitespace.
func trim(v any) string { return strings.TrimSpace(str(v)) }

// replace substitutes every occurrence of old with new in v.
func replace(v any, old, new string) string { return strings.ReplaceAll(str(v), old, new) }

// split breaks v around sep.
func split(v any, sep string) []string { return strings.Split(str(v), sep) }

// join concatenates the elements of a list with sep between them.
func join(v any, sep string) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, sep)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = str(item)
		}
		return strings.Join(parts, sep)
	default:
		return str(v)
	}
}

// indentText prefixes every line of v with n spaces.
func indentText(n int, v any) string {
	if n < 0 {
		n = 0
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(str(v), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// quote wraps v in double quotes with Go escaping.
func quote(v any) string { return strconv.Quote(str(v)) }

// repeatText returns v repeated n times, clamped to the loop bound.
func repeatText(n int, v any) string {
	if n < 0 {
		n = 0
	}
	if n > MaxLoopBound {
		n = MaxLoopBound
	}
	return strings.Repeat(str(v), n)
}

// contains reports whether v contains sub.
func contains(v any, sub string) bool { return strings.Contains(str(v), sub) }

// hasPrefix reports whether v starts with prefix.
func hasPrefix(v any, prefix string) bool { return strings.HasPrefix(str(v), prefix) }

// hasSuffix reports whether v ends with suffix.
func hasSuffix(v any, suffix string) bool { return strings.HasSuffix(str(v), suffix) }

// defaultOf returns the piped value when it is truthy, otherwise def.
// Usable both as {{.x | default "n/a"}} and {{default "n/a" .x}}.
func defaultOf(def any, v ...any) any {
	if len(v) > 0 && truthy(v[0]) {
		return v[0]
	}
	return def
}

// length returns the element or byte count of v.
func length(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return rv.Len()
	default:
		return 0
	}
}

// first returns the first element of a list, or nil.
func first(v any) any { return edge(v, 0) }

// last returns the last element of a list, or nil.
func last(v any) any { return edge(v, -1) }

func edge(v any, idx int) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() == 0 {
		return nil
	}
	if idx < 0 {
		idx = rv.Len() - 1
	}
	return rv.Index(idx).Interface()
}

// seq returns the integers [0, n), clamped to the loop bound.
func seq(n int) []int {
	if n < 0 {
		n = 0
	}
	if n > MaxLoopBound {
		n = MaxLoopBound
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// jsonify renders v as compact JSON, for embedding config fragments in
// generated runbooks.
func jsonify(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
