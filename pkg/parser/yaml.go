package parser

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/quillforge/quillforge/pkg/value"
)

// parseYAML delegates to the YAML decoder with ordered mappings enabled so
// the canonical map reflects document order. Streams with multiple
// documents keep the first and surface a warning; the top level must be a
// mapping.
func parseYAML(doc *Document, text string) error {
	dec := yaml.NewDecoder(
		bytes.NewReader([]byte(text)),
		yaml.UseOrderedMap(),
		yaml.AllowDuplicateMapKey(),
	)

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyInput
		}
		return yamlSyntaxError(err)
	}

	ms, ok := root.(yaml.MapSlice)
	if !ok {
		return &SyntaxError{Format: FormatYAML, Message: "top-level YAML value must be a mapping"}
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		doc.warnf("config contains multiple YAML documents; only the first is used")
	}

	converted := fromYAML(ms, doc)
	doc.Root = converted.(*value.Map)
	return nil
}

// fromYAML converts decoder output into canonical values, recording a
// warning for every duplicate mapping key it collapses.
func fromYAML(v any, doc *Document) value.Value {
	switch t := v.(type) {
	case yaml.MapSlice:
		m := value.NewMap()
		for _, item := range t {
			key, ok := item.Key.(string)
			if !ok {
				key = stringifyKey(item.Key)
			}
			if m.Set(key, fromYAML(item.Value, doc)) {
				doc.warnf("duplicate YAML key %q: the last occurrence wins", key)
			}
		}
		return m
	case []any:
		out := make(value.List, len(t))
		for i, item := range t {
			out[i] = fromYAML(item, doc)
		}
		return out
	default:
		return value.FromNative(t)
	}
}

func stringifyKey(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return "?"
	}
}

// yamlPosRe matches the "[line:column]" prefix the YAML library embeds in
// its error messages.
var yamlPosRe = regexp.MustCompile(`\[(\d+):(\d+)\]`)

func yamlSyntaxError(err error) error {
	se := &SyntaxError{Format: FormatYAML, Message: err.Error()}
	if m := yamlPosRe.FindStringSubmatch(err.Error()); m != nil {
		se.Line, _ = strconv.Atoi(m[1])
		se.Column, _ = strconv.Atoi(m[2])
	}
	return se
}
