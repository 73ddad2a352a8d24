package render

import (
	"strings"
	"testing"
	"time"

	"github.com/quillforge/quillforge/pkg/value"
)

func hostConfig() *value.Map {
	m := value.NewMap()
	m.Set("name", value.String("web01"))
	m.Set("ip", value.String("192.168.1.101"))
	return m
}

func rowsConfig() *value.Map {
	row1 := value.NewMap()
	row1.Set("hostname", value.String("web01"))
	row1.Set("ip", value.String("192.168.1.101"))
	row2 := value.NewMap()
	row2.Set("hostname", value.String("web02"))
	row2.Set("ip", value.String("192.168.1.102"))
	m := value.NewMap()
	m.Set("csv_rows", value.List{row1, row2})
	return m
}

// Scenario A: a simple substitution into a command line.
func TestRender_Substitution(t *testing.T) {
	r := New(nil, Options{})
	res := r.RenderSource(`ssh {{.ip}} "uptime"`, hostConfig())
	if !res.OK() {
		t.Fatalf("render failed: %v", res.Err)
	}
	if res.Text != `ssh 192.168.1.101 "uptime"` {
		t.Errorf("output = %q", res.Text)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

// Scenario B, default mode: a missing variable renders a conspicuous
// placeholder and records exactly one warning naming it.
func TestRender_UndefinedForgiving(t *testing.T) {
	r := New(nil, Options{})
	res := r.RenderSource(`value: {{.missing}}`, hostConfig())
	if !res.OK() {
		t.Fatalf("forgiving mode must not fail: %v", res.Err)
	}
	if res.Text != "value: <undefined: missing>" {
		t.Errorf("output = %q", res.Text)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], `"missing"`) {
		t.Errorf("warnings = %v, want one naming missing", res.Warnings)
	}
}

// Scenario B, strict mode: the same template is a hard failure.
func TestRender_UndefinedStrict(t *testing.T) {
	r := New(nil, Options{Strict: true})
	res := r.RenderSource(`value: {{.missing}}`, hostConfig())
	if res.OK() {
		t.Fatal("strict mode must fail on undefined variables")
	}
	if res.Err.Kind != KindUndefined || res.Err.Name != "missing" {
		t.Errorf("err = %+v, want undefined 'missing'", res.Err)
	}
}

func TestRender_NestedUndefined(t *testing.T) {
	cfg := value.NewMap()
	server := value.NewMap()
	server.Set("host", value.String("web01"))
	cfg.Set("server", server)

	forgiving := New(nil, Options{}).RenderSource(`{{.server.port}}`, cfg)
	if !forgiving.OK() {
		t.Fatalf("forgiving nested lookup failed: %v", forgiving.Err)
	}
	if len(forgiving.Warnings) != 1 || !strings.Contains(forgiving.Warnings[0], "server.port") {
		t.Errorf("warnings = %v", forgiving.Warnings)
	}

	strict := New(nil, Options{Strict: true}).RenderSource(`{{.server.port}}`, cfg)
	if strict.OK() || strict.Err.Kind != KindUndefined {
		t.Errorf("strict nested lookup should fail as undefined, got %+v", strict.Err)
	}
}

// With no undefined references, strict and default modes must produce
// identical output.
func TestRender_StrictParity(t *testing.T) {
	const src = `{{.name}} -> {{.ip}}
{{if .name}}up{{end}}`
	lax := New(nil, Options{}).RenderSource(src, hostConfig())
	strict := New(nil, Options{Strict: true}).RenderSource(src, hostConfig())
	if !lax.OK() || !strict.OK() {
		t.Fatalf("renders failed: %v / %v", lax.Err, strict.Err)
	}
	if lax.Text != strict.Text {
		t.Errorf("strict output diverged: %q vs %q", lax.Text, strict.Text)
	}
}

// Rendering the same pair twice yields byte-identical output.
func TestRender_Idempotent(t *testing.T) {
	r := New(nil, Options{})
	tpl, cerr := r.Compile(`{{range .csv_rows}}ssh {{.ip}}
{{end}}`)
	if cerr != nil {
		t.Fatalf("compile failed: %v", cerr)
	}
	cfg := rowsConfig()
	first := r.Render(tpl, cfg)
	second := r.Render(tpl, cfg)
	if !first.OK() || !second.OK() {
		t.Fatalf("renders failed: %v / %v", first.Err, second.Err)
	}
	if first.Text != second.Text {
		t.Error("rendering is not idempotent")
	}
}

// Scenario D: looping over CSV records emits lines in file order.
func TestRender_RangeOrder(t *testing.T) {
	r := New(nil, Options{})
	res := r.RenderSource(`{{range .csv_rows}}{{.hostname}}
{{end}}`, rowsConfig())
	if !res.OK() {
		t.Fatalf("render failed: %v", res.Err)
	}
	if res.Text != "web01\nweb02\n" {
		t.Errorf("output = %q", res.Text)
	}
}

func TestRender_MissingRangeBase(t *testing.T) {
	r := New(nil, Options{})
	res := r.RenderSource(`{{range .rows}}{{.x}}{{end}}done`, hostConfig())
	if !res.OK() {
		t.Fatalf("forgiving mode should skip a missing loop: %v", res.Err)
	}
	if res.Text != "done" {
		t.Errorf("output = %q", res.Text)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestRender_EmptyConfig(t *testing.T) {
	r := New(nil, Options{})
	res := r.RenderSource("static text only\n", nil)
	if !res.OK() {
		t.Fatalf("static template must render without config: %v", res.Err)
	}
	if res.Text != "static text only\n" {
		t.Errorf("output = %q", res.Text)
	}
}

func TestCompile_SyntaxErrorLine(t *testing.T) {
	r := New(nil, Options{})
	_, cerr := r.Compile("line one\nline two {{.broken\n")
	if cerr == nil {
		t.Fatal("expected a syntax error")
	}
	if cerr.Kind != KindSyntax {
		t.Errorf("kind = %v, want syntax", cerr.Kind)
	}
	if cerr.Line != 2 {
		t.Errorf("line = %d, want 2", cerr.Line)
	}
}

func TestCompile_GuardRejectsTemplateAction(t *testing.T) {
	r := New(nil, Options{})
	if _, cerr := r.Compile(`{{template "other"}}`); cerr == nil {
		t.Error("template action must be rejected")
	}
	if _, cerr := r.Compile(`{{define "x"}}y{{end}}body`); cerr == nil {
		t.Error("define action must be rejected")
	}
}

func TestCompile_GuardRejectsHugeLiteralBound(t *testing.T) {
	r := New(nil, Options{})
	_, cerr := r.Compile(`{{range seq 2000000}}x{{end}}`)
	if cerr == nil {
		t.Fatal("oversized literal seq bound must be rejected")
	}
	if cerr.Kind != KindSyntax {
		t.Errorf("kind = %v, want syntax", cerr.Kind)
	}
}

func TestRender_OutputBudget(t *testing.T) {
	r := New(nil, Options{MaxOutputBytes: 64})
	res := r.RenderSource(`{{range seq 1000}}0123456789{{end}}`, value.NewMap())
	if res.OK() {
		t.Fatal("expected the output budget to trip")
	}
	if res.Err.Kind != KindBudget {
		t.Errorf("kind = %v, want budget", res.Err.Kind)
	}
}

func TestRender_TimeBudget(t *testing.T) {
	r := New(nil, Options{Timeout: time.Nanosecond})
	res := r.RenderSource(`{{range seq 100000}}x{{end}}`, value.NewMap())
	if res.OK() {
		t.Fatal("expected the time budget to trip")
	}
	if res.Err.Kind != KindBudget {
		t.Errorf("kind = %v, want budget", res.Err.Kind)
	}
}

func TestRender_FormatModes(t *testing.T) {
	const text = "a\n\n\n\nb\n"
	cases := []struct {
		format Format
		want   string
	}{
		{FormatRaw, "a\n\n\n\nb\n"},
		{FormatCompressBlank, "a\n\nb\n"},
		{FormatNormalizeBreaks, "a\n\nb\n"},
		{FormatStripBlank, "a\nb\n"},
	}
	for _, c := range cases {
		r := New(nil, Options{Format: c.format})
		res := r.RenderSource(text, nil)
		if !res.OK() {
			t.Fatalf("format %v render failed: %v", c.format, res.Err)
		}
		if res.Text != c.want {
			t.Errorf("format %v output = %q, want %q", c.format, res.Text, c.want)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	r := New(nil, Options{})
	tpl, cerr := r.Compile(`{{range .csv_rows}}ssh {{.ip}} "uptime"
{{end}}`)
	if cerr != nil {
		b.Fatalf("compile failed: %v", cerr)
	}
	cfg := rowsConfig()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := r.Render(tpl, cfg); !res.OK() {
			b.Fatalf("render failed: %v", res.Err)
		}
	}
}

func TestRender_PreservesLiteralWhitespace(t *testing.T) {
	const src = "  indented {{.name}}\t\nnext line\n"
	r := New(nil, Options{})
	res := r.RenderSource(src, hostConfig())
	if !res.OK() {
		t.Fatalf("render failed: %v", res.Err)
	}
	if res.Text != "  indented web01\t\nnext line\n" {
		t.Errorf("output = %q", res.Text)
	}
}
