/*
Package inspect produces human-readable structural reports for the two
debug modes: the parsed configuration's shape and the compiled template's
node tree.

Describing is purely structural and total: it never validates, never
mutates, and never fails. Shapes it does not recognize collapse into an
"unprintable" leaf instead of an error.
*/
package inspect

import (
	"fmt"
	"strconv"
	"strings"
	"text/template/parse"

	"github.com/quillforge/quillforge/pkg/value"
)

// Report is a serializable tree mirroring the structure it describes.
// Label carries the node's type annotation for display.
type Report struct {
	Label    string    `json:"label"`
	Key      string    `json:"key,omitempty"`
	Value    string    `json:"value,omitempty"`
	Children []*Report `json:"children,omitempty"`
}

// Config describes a canonical configuration value.
func Config(v value.Value) *Report {
	return describeValue(v, "")
}

func describeValue(v value.Value, key string) *Report {
	switch t := v.(type) {
	case nil:
		return &Report{Label: "empty", Key: key}
	case value.Null:
		return &Report{Label: "null", Key: key}
	case value.String:
		return &Report{Label: "string", Key: key, Value: string(t)}
	case value.Bool:
		return &Report{Label: "bool", Key: key, Value: strconv.FormatBool(bool(t))}
	case value.Number:
		label := "float"
		if t.IsInt() {
			label = "int"
		}
		return &Report{Label: label, Key: key, Value: t.String()}
	case value.List:
		r := &Report{Label: fmt.Sprintf("list[%d]", len(t)), Key: key}
		for _, item := range t {
			r.Children = append(r.Children, describeValue(item, ""))
		}
		return r
	case *value.Map:
		if t == nil {
			return &Report{Label: "empty", Key: key}
		}
		r := &Report{Label: fmt.Sprintf("map[%d]", t.Len()), Key: key}
		for _, k := range t.Keys() {
			child, _ := t.Get(k)
			r.Children = append(r.Children, describeValue(child, k))
		}
		return r
	default:
		return &Report{Label: "unprintable", Key: key}
	}
}

// Template describes a compiled template's node tree, the visual-debug
// counterpart to Config.
func Template(tree *parse.Tree) *Report {
	if tree == nil || tree.Root == nil {
		return &Report{Label: "empty"}
	}
	return describeNode(tree.Root)
}

func describeNode(node parse.Node) *Report {
	switch n := node.(type) {
	case *parse.ListNode:
		r := &Report{Label: "block"}
		if n == nil {
			return r
		}
		for _, item := range n.Nodes {
			r.Children = append(r.Children, describeNode(item))
		}
		return r
	case *parse.TextNode:
		return &Report{Label: "text", Value: summarizeText(string(n.Text))}
	case *parse.ActionNode:
		return &Report{Label: "action", Value: n.Pipe.String()}
	case *parse.IfNode:
		return describeBranch("if", &n.BranchNode)
	case *parse.RangeNode:
		return describeBranch("range", &n.BranchNode)
	case *parse.WithNode:
		return describeBranch("with", &n.BranchNode)
	case *parse.CommentNode:
		return &Report{Label: "comment", Value: n.Text}
	default:
		return &Report{Label: "unprintable", Value: node.String()}
	}
}

func describeBranch(label string, n *parse.BranchNode) *Report {
	r := &Report{Label: label, Value: n.Pipe.String()}
	r.Children = append(r.Children, describeNode(n.List))
	if n.ElseList != nil {
		alt := describeNode(n.ElseList)
		alt.Label = "else"
		r.Children = append(r.Children, alt)
	}
	return r
}

// summarizeText keeps literal text legible in reports: short snippets show
// verbatim, long ones are truncated with a byte count.
func summarizeText(text string) string {
	const maxShown = 40
	if len(text) <= maxShown {
		return strconv.Quote(text)
	}
	return fmt.Sprintf("%s... (%d bytes)", strconv.Quote(text[:maxShown]), len(text))
}

// Text renders the report as an indented outline for plain display.
func (r *Report) Text() string {
	var b strings.Builder
	writeText(&b, r, 0)
	return b.String()
}

func writeText(b *strings.Builder, r *Report, depth int) {
	if r == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	if r.Key != "" {
		b.WriteString(r.Key)
		b.WriteString(": ")
	}
	b.WriteString(r.Label)
	if r.Value != "" {
		b.WriteString(" = ")
		b.WriteString(r.Value)
	}
	b.WriteByte('\n')
	for _, child := range r.Children {
		writeText(b, child, depth+1)
	}
}
