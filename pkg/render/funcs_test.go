package render

import (
	"testing"

	"github.com/quillforge/quillforge/pkg/value"
)

// renderOne is a helper that renders src against cfg and fails the test on
// any error.
func renderOne(t *testing.T, src string, cfg *value.Map) string {
	t.Helper()
	res := New(nil, Options{}).RenderSource(src, cfg)
	if !res.OK() {
		t.Fatalf("render of %q failed: %v", src, res.Err)
	}
	return res.Text
}

func TestFuncs_Strings(t *testing.T) {
	cfg := value.NewMap()
	cfg.Set("host", value.String("Web01"))
	cfg.Set("path", value.String("/var/log/app"))

	cases := []struct {
		src  string
		want string
	}{
		{`{{upper .host}}`, "WEB01"},
		{`{{lower .host}}`, "web01"},
		{`{{replace .path "/" "_"}}`, "_var_log_app"},
		{`{{trim "  x  "}}`, "x"},
		{`{{quote .host}}`, `"Web01"`},
		{`{{repeat 3 "-"}}`, "---"},
		{`{{if hasPrefix .path "/var"}}yes{{end}}`, "yes"},
		{`{{if contains .path "log"}}yes{{end}}`, "yes"},
		{`{{indent 2 "a\nb"}}`, "  a\n  b"},
	}
	for _, c := range cases {
		if got := renderOne(t, c.src, cfg); got != c.want {
			t.Errorf("%s = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestFuncs_Collections(t *testing.T) {
	cfg := value.NewMap()
	cfg.Set("tags", value.List{value.String("prod"), value.String("east")})
	cfg.Set("empty", value.String(""))

	cases := []struct {
		src  string
		want string
	}{
		{`{{join .tags ","}}`, "prod,east"},
		{`{{length .tags}}`, "2"},
		{`{{first .tags}}`, "prod"},
		{`{{last .tags}}`, "east"},
		{`{{.empty | default "n/a"}}`, "n/a"},
		{`{{.tags | length}}`, "2"},
		{`{{range seq 3}}{{.}}{{end}}`, "012"},
		{`{{jsonify .tags}}`, `["prod","east"]`},
	}
	for _, c := range cases {
		if got := renderOne(t, c.src, cfg); got != c.want {
			t.Errorf("%s = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestFuncs_SeqClamped(t *testing.T) {
	if got := len(seq(MaxLoopBound + 50)); got != MaxLoopBound {
		t.Errorf("seq should clamp to %d, got %d", MaxLoopBound, got)
	}
	if got := len(seq(-1)); got != 0 {
		t.Errorf("seq(-1) length = %d, want 0", got)
	}
}

func TestFuncs_Truthy(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{"x", true},
		{int64(0), false},
		{int64(7), true},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
	}
	for _, c := range cases {
		if got := truthy(c.in); got != c.want {
			t.Errorf("truthy(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
}
