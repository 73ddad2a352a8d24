package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/quillforge/quillforge/pkg/value"
)

// Kind classifies a rendering failure.
type Kind int

const (
	// KindSyntax covers template grammar errors and guard violations found
	// at compile time.
	KindSyntax Kind = iota
	// KindUndefined marks a reference to a variable the config does not
	// define (fatal only in strict mode, or when the reference cannot be
	// substituted).
	KindUndefined
	// KindBudget marks an execution that exceeded its output or time
	// budget.
	KindBudget
	// KindExecution covers other runtime evaluation failures, such as a
	// function applied to an incompatible value.
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "template syntax error"
	case KindUndefined:
		return "undefined variable"
	case KindBudget:
		return "execution budget exceeded"
	case KindExecution:
		return "execution error"
	default:
		return "error"
	}
}

// Error is a classified rendering failure. Line is the 1-based line in the
// template source when known; Name is set for undefined-variable failures.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Name    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Result is the outcome of a render pass: either Text with Warnings, or a
// non-nil Err. Results are immutable once returned.
type Result struct {
	Text     string
	Warnings []string
	Err      *Error
}

// OK reports whether rendering succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Options adjust renderer behavior. The zero value renders forgivingly
// with raw output and the default budget.
type Options struct {
	// Strict turns undefined variable references into hard failures
	// instead of placeholder substitutions with warnings.
	Strict bool

	// Format selects whitespace post-processing of the rendered text.
	Format Format

	// MaxOutputBytes bounds the rendered output size. Defaults to 10 MiB.
	MaxOutputBytes int64

	// Timeout bounds wall-clock execution time. Defaults to 5 seconds.
	Timeout time.Duration
}

const (
	defaultMaxOutputBytes = 10 << 20
	defaultTimeout        = 5 * time.Second
)

// Renderer executes templates against canonical config maps. It holds no
// per-request state and is safe for concurrent use.
type Renderer struct {
	logger *slog.Logger
	opts   Options
	funcs  template.FuncMap
}

// New creates a Renderer. A nil logger discards log output.
func New(logger *slog.Logger, opts Options) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = defaultMaxOutputBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Renderer{logger: logger, opts: opts, funcs: builtinFuncs()}
}

// Template is a compiled, guard-checked template ready for execution.
type Template struct {
	tmpl *template.Template
	src  string
}

// Tree exposes the parsed node tree for introspection.
func (t *Template) Tree() *parse.Tree { return t.tmpl.Tree }

// Source returns the original template text.
func (t *Template) Source() string { return t.src }

// Compile parses the template source and runs the static guard. The
// returned *Error, when non-nil, is always KindSyntax.
func (r *Renderer) Compile(src string) (*Template, *Error) {
	tmpl, err := template.New("template").Funcs(r.funcs).Parse(src)
	if err != nil {
		return nil, syntaxError(err)
	}
	if gerr := guard(tmpl); gerr != nil {
		return nil, gerr
	}
	return &Template{tmpl: tmpl, src: src}, nil
}

// Render executes a compiled template with cfg bound as the root
// namespace. A nil cfg behaves as an empty mapping.
func (r *Renderer) Render(t *Template, cfg *value.Map) Result {
	ctx := map[string]any{}
	if cfg != nil {
		ctx = cfg.Native().(map[string]any)
	}

	refs := scanRefs(t.tmpl.Tree)
	missing := missingRefs(cfg, refs)

	var warnings []string
	if r.opts.Strict {
		if len(missing) > 0 {
			m := missing[0]
			return Result{Err: &Error{
				Kind:    KindUndefined,
				Name:    m.name,
				Message: fmt.Sprintf("%q is undefined", m.name),
			}}
		}
	} else {
		for _, m := range missing {
			warnings = append(warnings, fmt.Sprintf("undefined variable %q", m.name))
			if len(m.path) != 1 {
				continue
			}
			// Substitute something the reference can still evaluate
			// against: loops get an empty list, with-blocks an empty map,
			// plain substitutions a conspicuous placeholder.
			switch {
			case m.loop:
				ctx[m.name] = []any{}
			case m.with:
				ctx[m.name] = map[string]any{}
			default:
				ctx[m.name] = "<undefined: " + m.name + ">"
			}
		}
	}

	exec, err := t.tmpl.Clone()
	if err != nil {
		return Result{Err: &Error{Kind: KindExecution, Message: err.Error()}}
	}
	if r.opts.Strict {
		exec.Option("missingkey=error")
	} else {
		exec.Option("missingkey=invalid")
	}

	w := newBudgetWriter(r.opts.MaxOutputBytes, time.Now().Add(r.opts.Timeout))
	if err := exec.Execute(w, ctx); err != nil {
		r.logger.Debug("template execution failed", "error", err)
		return Result{Err: classifyExecError(err)}
	}

	return Result{Text: applyFormat(w.String(), r.opts.Format), Warnings: warnings}
}

// RenderSource compiles and renders in one step.
func (r *Renderer) RenderSource(src string, cfg *value.Map) Result {
	t, cerr := r.Compile(src)
	if cerr != nil {
		return Result{Err: cerr}
	}
	return r.Render(t, cfg)
}

var (
	errBudgetSize = errors.New("rendered output exceeds the size budget")
	errBudgetTime = errors.New("template execution exceeded its time budget")
)

// budgetWriter aborts template execution once the output or time budget is
// spent. Every template action that emits output passes through Write, so
// runaway loops driven by attacker-controlled config terminate here.
type budgetWriter struct {
	buf      bytes.Buffer
	max      int64
	deadline time.Time
}

func newBudgetWriter(max int64, deadline time.Time) *budgetWriter {
	return &budgetWriter{max: max, deadline: deadline}
}

func (w *budgetWriter) Write(p []byte) (int, error) {
	if time.Now().After(w.deadline) {
		return 0, errBudgetTime
	}
	if int64(w.buf.Len()+len(p)) > w.max {
		return 0, errBudgetSize
	}
	return w.buf.Write(p)
}

func (w *budgetWriter) String() string { return w.buf.String() }

var (
	tmplLineRe   = regexp.MustCompile(`template:(\d+)(?::\d+)?:`)
	missingKeyRe = regexp.MustCompile(`map has no entry for key "([^"]+)"`)
	atRefRe      = regexp.MustCompile(`at <\.?([^>]+)>`)
)

func syntaxError(err error) *Error {
	e := &Error{Kind: KindSyntax, Message: err.Error()}
	if m := tmplLineRe.FindStringSubmatch(err.Error()); m != nil {
		e.Line, _ = strconv.Atoi(m[1])
	}
	return e
}

func classifyExecError(err error) *Error {
	if errors.Is(err, errBudgetSize) || errors.Is(err, errBudgetTime) {
		return &Error{Kind: KindBudget, Message: err.Error()}
	}

	e := &Error{Kind: KindExecution, Message: err.Error()}
	if m := tmplLineRe.FindStringSubmatch(err.Error()); m != nil {
		e.Line, _ = strconv.Atoi(m[1])
	}
	if m := missingKeyRe.FindStringSubmatch(err.Error()); m != nil {
		e.Kind = KindUndefined
		e.Name = m[1]
	} else if strings.Contains(err.Error(), "can't evaluate field") {
		e.Kind = KindUndefined
		if m := atRefRe.FindStringSubmatch(err.Error()); m != nil {
			e.Name = m[1]
		}
	}
	return e
}
