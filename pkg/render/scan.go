package render

import (
	"strings"
	"text/template/parse"

	"github.com/quillforge/quillforge/pkg/value"
)

// ref is a variable reference discovered by static analysis of the
// template tree. The path is relative to the root context; the marker
// segment "[]" stands for "element of the list at the preceding path".
type ref struct {
	path []string
	name string
	loop bool // used as the pipeline of a range action
	with bool // used as the pipeline of a with action
}

// scope tracks what the current dot refers to while walking nested range
// and with blocks. An opaque scope means the dot's shape could not be
// resolved statically, which disables reference checks underneath it.
type scope struct {
	base   []string
	opaque bool
}

// scanRefs walks the template tree and returns every field reference that
// can be resolved statically against the root context. References routed
// through variables, chained expressions, or function results are skipped
// rather than guessed at.
func scanRefs(tree *parse.Tree) []ref {
	if tree == nil || tree.Root == nil {
		return nil
	}
	s := &scanner{scopes: []scope{{}}}
	s.walk(tree.Root)
	return s.refs
}

type scanner struct {
	refs   []ref
	scopes []scope
}

func (s *scanner) top() scope { return s.scopes[len(s.scopes)-1] }

func (s *scanner) push(sc scope) { s.scopes = append(s.scopes, sc) }

func (s *scanner) pop() { s.scopes = s.scopes[:len(s.scopes)-1] }

func (s *scanner) walk(node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, item := range n.Nodes {
			s.walk(item)
		}
	case *parse.ActionNode:
		s.pipe(n.Pipe, false, false)
	case *parse.IfNode:
		s.pipe(n.Pipe, false, false)
		s.walk(n.List)
		if n.ElseList != nil {
			s.walk(n.ElseList)
		}
	case *parse.RangeNode:
		base, ok := s.pipe(n.Pipe, true, false)
		inner := scope{opaque: true}
		if ok {
			inner = scope{base: append(base, "[]")}
		}
		s.push(inner)
		s.walk(n.List)
		s.pop()
		if n.ElseList != nil {
			s.walk(n.ElseList)
		}
	case *parse.WithNode:
		base, ok := s.pipe(n.Pipe, false, true)
		inner := scope{opaque: true}
		if ok {
			inner = scope{base: base}
		}
		s.push(inner)
		s.walk(n.List)
		s.pop()
		if n.ElseList != nil {
			s.walk(n.ElseList)
		}
	}
}

// pipe records references inside a pipeline and, when the pipeline is a
// single plain field access, returns its resolved path for scope tracking.
func (s *scanner) pipe(p *parse.PipeNode, loop, with bool) ([]string, bool) {
	if p == nil {
		return nil, false
	}
	var base []string
	resolved := false
	single := len(p.Cmds) == 1 && len(p.Cmds[0].Args) == 1

	for _, cmd := range p.Cmds {
		for _, arg := range cmd.Args {
			switch a := arg.(type) {
			case *parse.FieldNode:
				path, ok := s.resolve(a.Ident)
				if !ok {
					continue
				}
				s.record(ref{path: path, name: refName(path), loop: single && loop, with: single && with})
				if single {
					base, resolved = path, true
				}
			case *parse.DotNode:
				if top := s.top(); !top.opaque && single {
					base, resolved = top.base, true
				}
			case *parse.PipeNode:
				s.pipe(a, false, false)
			}
		}
	}
	return base, resolved
}

func (s *scanner) resolve(ident []string) ([]string, bool) {
	top := s.top()
	if top.opaque {
		return nil, false
	}
	path := make([]string, 0, len(top.base)+len(ident))
	path = append(path, top.base...)
	path = append(path, ident...)
	return path, true
}

func (s *scanner) record(r ref) {
	for i := range s.refs {
		if s.refs[i].name == r.name {
			s.refs[i].loop = s.refs[i].loop || r.loop
			s.refs[i].with = s.refs[i].with || r.with
			return
		}
	}
	s.refs = append(s.refs, r)
}

func refName(path []string) string {
	parts := make([]string, 0, len(path))
	for _, seg := range path {
		if seg != "[]" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, ".")
}

// missingRefs resolves each discovered reference against the config tree
// and returns the ones that are definitely absent. References that pass
// through shapes the scan cannot prove (empty lists, opaque scopes) are
// given the benefit of the doubt.
func missingRefs(cfg *value.Map, refs []ref) []ref {
	var found []ref
	for _, r := range refs {
		if isMissing(cfg, r.path) {
			found = append(found, r)
		}
	}
	// A missing prefix shadows its extensions: when .rows is absent there
	// is no point also reporting .rows.x.
	var out []ref
	for _, r := range found {
		shadowed := false
		for _, p := range found {
			if p.name != r.name && strings.HasPrefix(r.name, p.name+".") {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, r)
		}
	}
	return out
}

func isMissing(cfg *value.Map, path []string) bool {
	var cur value.Value
	if cfg != nil {
		cur = cfg
	} else {
		cur = value.NewMap()
	}
	for _, seg := range path {
		if seg == "[]" {
			list, ok := cur.(value.List)
			if !ok || len(list) == 0 {
				return false // cannot prove anything about elements
			}
			cur = list[0]
			continue
		}
		m, ok := cur.(*value.Map)
		if !ok {
			// Field access on a scalar can never succeed.
			return true
		}
		next, ok := m.Get(seg)
		if !ok {
			return true
		}
		cur = next
	}
	return false
}
