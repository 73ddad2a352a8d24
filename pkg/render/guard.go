package render

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"
)

// MaxLoopBound is the largest literal count accepted by the seq and repeat
// functions. Larger literals are rejected at compile time; non-literal
// counts are clamped at call time (see funcs.go).
const MaxLoopBound = 100000

// guard statically rejects template constructs that are off-limits for
// user-supplied templates: invoking or defining named sub-templates, and
// literal loop bounds past MaxLoopBound. Rendering operates on exactly one
// inline template with a fixed function set; everything else is a
// template-injection surface.
func guard(tmpl *template.Template) *Error {
	for _, assoc := range tmpl.Templates() {
		if assoc.Name() != tmpl.Name() {
			return &Error{
				Kind:    KindSyntax,
				Message: fmt.Sprintf("defining named templates is not allowed (found %q)", assoc.Name()),
			}
		}
	}
	if tmpl.Tree == nil || tmpl.Tree.Root == nil {
		return nil
	}
	g := &guardWalker{tree: tmpl.Tree}
	return g.node(tmpl.Tree.Root)
}

type guardWalker struct {
	tree *parse.Tree
}

func (g *guardWalker) node(node parse.Node) *Error {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		for _, item := range n.Nodes {
			if err := g.node(item); err != nil {
				return err
			}
		}
	case *parse.TemplateNode:
		return &Error{
			Kind:    KindSyntax,
			Line:    g.line(n),
			Message: "the template action is not allowed",
		}
	case *parse.ActionNode:
		return g.pipe(n.Pipe)
	case *parse.IfNode:
		return g.branch(&n.BranchNode)
	case *parse.RangeNode:
		return g.branch(&n.BranchNode)
	case *parse.WithNode:
		return g.branch(&n.BranchNode)
	}
	return nil
}

func (g *guardWalker) branch(n *parse.BranchNode) *Error {
	if err := g.pipe(n.Pipe); err != nil {
		return err
	}
	if err := g.node(n.List); err != nil {
		return err
	}
	if n.ElseList != nil {
		return g.node(n.ElseList)
	}
	return nil
}

func (g *guardWalker) pipe(p *parse.PipeNode) *Error {
	if p == nil {
		return nil
	}
	for _, cmd := range p.Cmds {
		if len(cmd.Args) >= 2 {
			if ident, ok := cmd.Args[0].(*parse.IdentifierNode); ok && (ident.Ident == "seq" || ident.Ident == "repeat") {
				if num, ok := cmd.Args[1].(*parse.NumberNode); ok && num.IsInt && num.Int64 > MaxLoopBound {
					return &Error{
						Kind:    KindSyntax,
						Line:    g.line(cmd),
						Message: fmt.Sprintf("%s bound %d exceeds the maximum of %d", ident.Ident, num.Int64, MaxLoopBound),
					}
				}
			}
		}
		for _, arg := range cmd.Args {
			if nested, ok := arg.(*parse.PipeNode); ok {
				if err := g.pipe(nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// line recovers the 1-based source line of a node from the tree's error
// context, which formats locations as "name:line:column".
func (g *guardWalker) line(n parse.Node) int {
	loc, _ := g.tree.ErrorContext(n)
	parts := strings.Split(loc, ":")
	if len(parts) < 2 {
		return 0
	}
	line, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0
	}
	return line
}
