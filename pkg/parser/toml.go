package parser

import (
	"errors"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/quillforge/quillforge/pkg/value"
)

// parseTOML delegates to the TOML decoder, then rebuilds the ordered
// canonical tree by replaying the decoder's metadata key list, which records
// every table header and key in declaration order.
func parseTOML(doc *Document, text string) error {
	var raw map[string]any
	md, err := toml.Decode(text, &raw)
	if err != nil {
		return tomlSyntaxError(err)
	}

	b := &tomlBuilder{md: md, raw: raw, root: value.NewMap(), elems: map[string]int{}}
	for _, key := range md.Keys() {
		b.place([]string(key))
	}

	doc.Root = b.root
	return nil
}

// tomlBuilder reconstructs declaration order from decoder metadata. An
// array-of-tables header repeats its key once per [[...]] occurrence, so
// each repetition appends a fresh element mapping; keys declared inside the
// element then land in that mapping in order.
type tomlBuilder struct {
	md    toml.MetaData
	raw   map[string]any
	root  *value.Map
	elems map[string]int // array path -> elements materialized so far
}

func (b *tomlBuilder) place(path []string) {
	if b.md.Type(path...) == "ArrayOfTables" {
		parent, ok := b.mapping(path[:len(path)-1])
		if !ok {
			return
		}
		name := path[len(path)-1]
		var list value.List
		if existing, found := parent.Get(name); found {
			if l, isList := existing.(value.List); isList {
				list = l
			}
		}
		parent.Set(name, append(list, value.NewMap()))
		b.elems[joinPath(path)]++
		// A new element restarts the element counters of any nested arrays.
		prefix := joinPath(path) + "\x00"
		for k := range b.elems {
			if strings.HasPrefix(k, prefix) {
				delete(b.elems, k)
			}
		}
		return
	}

	rv, ok := b.lookupRaw(path)
	if !ok {
		return
	}
	switch t := rv.(type) {
	case map[string]any:
		// Table header: materialize the (possibly empty) mapping now so it
		// keeps its declared position; children fill it in later.
		b.mapping(path)
	default:
		parent, ok := b.mapping(path[:len(path)-1])
		if !ok {
			return
		}
		parent.Set(path[len(path)-1], value.FromNative(t))
	}
}

// mapping walks the canonical tree to the map at path, creating nested maps
// as needed and descending into the newest element of any array of tables
// along the way.
func (b *tomlBuilder) mapping(path []string) (*value.Map, bool) {
	cur := b.root
	for _, seg := range path {
		existing, ok := cur.Get(seg)
		if !ok {
			next := value.NewMap()
			cur.Set(seg, next)
			cur = next
			continue
		}
		switch t := existing.(type) {
		case *value.Map:
			cur = t
		case value.List:
			if len(t) == 0 {
				return nil, false
			}
			m, isMap := t[len(t)-1].(*value.Map)
			if !isMap {
				return nil, false
			}
			cur = m
		default:
			return nil, false
		}
	}
	return cur, true
}

// lookupRaw resolves path in the decoder's output, selecting the current
// element wherever the path crosses an array of tables.
func (b *tomlBuilder) lookupRaw(path []string) (any, bool) {
	var cur any = b.raw
	for i, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
		if arr, isArr := cur.([]map[string]any); isArr && i < len(path)-1 {
			n := b.elems[joinPath(path[:i+1])]
			if n < 1 || n > len(arr) {
				return nil, false
			}
			cur = arr[n-1]
		}
	}
	return cur, true
}

func joinPath(path []string) string { return strings.Join(path, "\x00") }

func tomlSyntaxError(err error) error {
	var pe toml.ParseError
	if errors.As(err, &pe) {
		// toml.Position carries the line but no column.
		return &SyntaxError{
			Format:  FormatTOML,
			Line:    pe.Position.Line,
			Message: pe.Message,
		}
	}
	return &SyntaxError{Format: FormatTOML, Message: err.Error()}
}
