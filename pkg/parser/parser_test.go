package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/quillforge/quillforge/pkg/value"
)

func mustParse(t *testing.T, data string, format Format) *Document {
	t.Helper()
	doc, err := Parse([]byte(data), format, Options{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestParse_YAMLScenarioA(t *testing.T) {
	doc := mustParse(t, "name: web01\nip: 192.168.1.101\n", FormatYAML)

	if got := doc.Root.Keys(); !reflect.DeepEqual(got, []string{"name", "ip"}) {
		t.Errorf("keys = %v, want [name ip]", got)
	}
	ip, ok := doc.Root.Get("ip")
	if !ok || ip.Native() != "192.168.1.101" {
		t.Errorf("ip = %v, want 192.168.1.101", ip)
	}
}

func TestParse_YAMLKeyOrderAndTypes(t *testing.T) {
	src := `
zeta: 1
alpha: text
nested:
  x: true
  y: 2.5
list:
  - one
  - 2
`
	doc := mustParse(t, src, FormatYAML)
	if got := doc.Root.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "nested", "list"}) {
		t.Errorf("document order not preserved: %v", got)
	}
	nested, _ := doc.Root.Get("nested")
	m, ok := nested.(*value.Map)
	if !ok {
		t.Fatalf("nested should be a map, got %T", nested)
	}
	y, _ := m.Get("y")
	if y.Kind() != value.KindNumber {
		t.Errorf("y kind = %v, want number", y.Kind())
	}
}

func TestParse_YAMLTopLevelNotMapping(t *testing.T) {
	_, err := Parse([]byte("- a\n- b\n"), FormatYAML, Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError for list document, got %v", err)
	}
}

func TestParse_YAMLMultiDocumentWarns(t *testing.T) {
	doc := mustParse(t, "a: 1\n---\nb: 2\n", FormatYAML)
	if _, ok := doc.Root.Get("a"); !ok {
		t.Error("first document should be selected")
	}
	if _, ok := doc.Root.Get("b"); ok {
		t.Error("second document must not leak into the config")
	}
	if len(doc.Warnings) == 0 || !strings.Contains(doc.Warnings[0], "multiple YAML documents") {
		t.Errorf("expected a multi-document warning, got %v", doc.Warnings)
	}
}

func TestParse_YAMLDuplicateKeyLastWins(t *testing.T) {
	doc := mustParse(t, "host: first\nhost: second\n", FormatYAML)
	v, _ := doc.Root.Get("host")
	if v.Native() != "second" {
		t.Errorf("host = %v, want the last occurrence", v.Native())
	}
	found := false
	for _, w := range doc.Warnings {
		if strings.Contains(w, `duplicate YAML key "host"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected duplicate-key warning, got %v", doc.Warnings)
	}
}

func TestParse_YAMLSyntaxErrorHasLine(t *testing.T) {
	_, err := Parse([]byte("ok: 1\nbroken: [a, b\n"), FormatYAML, Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
	if se.Line == 0 {
		t.Errorf("syntax error should carry a line number: %v", se)
	}
}

func TestParse_TOMLTables(t *testing.T) {
	src := `
title = "runbook"

[server]
host = "web01"
port = 22

[server.auth]
user = "ops"
`
	doc := mustParse(t, src, FormatTOML)
	if got := doc.Root.Keys(); !reflect.DeepEqual(got, []string{"title", "server"}) {
		t.Errorf("top-level keys = %v", got)
	}
	server, _ := doc.Root.Get("server")
	sm := server.(*value.Map)
	if got := sm.Keys(); !reflect.DeepEqual(got, []string{"host", "port", "auth"}) {
		t.Errorf("server keys = %v", got)
	}
	auth, _ := sm.Get("auth")
	user, _ := auth.(*value.Map).Get("user")
	if user.Native() != "ops" {
		t.Errorf("server.auth.user = %v", user.Native())
	}
}

func TestParse_TOMLArrayOfTables(t *testing.T) {
	src := `
[[hosts]]
name = "web01"

[[hosts]]
name = "web02"
`
	doc := mustParse(t, src, FormatTOML)
	hosts, ok := doc.Root.Get("hosts")
	if !ok {
		t.Fatal("hosts missing")
	}
	list, ok := hosts.(value.List)
	if !ok {
		t.Fatalf("hosts should be a list, got %T", hosts)
	}
	if len(list) != 2 {
		t.Fatalf("len(hosts) = %d, want 2", len(list))
	}
	name, _ := list[1].(*value.Map).Get("name")
	if name.Native() != "web02" {
		t.Errorf("hosts[1].name = %v", name.Native())
	}
}

// Element keys of an array of tables must keep their declared order, same
// as ordinary tables.
func TestParse_TOMLArrayOfTablesKeyOrder(t *testing.T) {
	src := `
[[srv]]
name = "web01"
addr = "10.0.0.1"

[[srv]]
name = "web02"
addr = "10.0.0.2"
`
	doc := mustParse(t, src, FormatTOML)
	srv, _ := doc.Root.Get("srv")
	list, ok := srv.(value.List)
	if !ok || len(list) != 2 {
		t.Fatalf("srv = %T len %d, want a 2-element list", srv, len(list))
	}
	for i, wantName := range []string{"web01", "web02"} {
		row := list[i].(*value.Map)
		if got := row.Keys(); !reflect.DeepEqual(got, []string{"name", "addr"}) {
			t.Errorf("element %d keys = %v, want [name addr]", i, got)
		}
		name, _ := row.Get("name")
		if name.Native() != wantName {
			t.Errorf("element %d name = %v, want %s", i, name.Native(), wantName)
		}
	}
}

func TestParse_TOMLNestedArrayOfTables(t *testing.T) {
	src := `
[[job]]
title = "deploy"
[[job.step]]
run = "build"
[[job.step]]
run = "push"

[[job]]
title = "verify"
[[job.step]]
run = "smoke"
`
	doc := mustParse(t, src, FormatTOML)
	jobs, _ := doc.Root.Get("job")
	list := jobs.(value.List)
	if len(list) != 2 {
		t.Fatalf("len(job) = %d, want 2", len(list))
	}

	first := list[0].(*value.Map)
	if got := first.Keys(); !reflect.DeepEqual(got, []string{"title", "step"}) {
		t.Errorf("job[0] keys = %v, want [title step]", got)
	}
	steps, _ := first.Get("step")
	runs := []string{}
	for _, s := range steps.(value.List) {
		run, _ := s.(*value.Map).Get("run")
		runs = append(runs, run.Native().(string))
	}
	if !reflect.DeepEqual(runs, []string{"build", "push"}) {
		t.Errorf("job[0] steps = %v", runs)
	}

	second := list[1].(*value.Map)
	steps, _ = second.Get("step")
	if inner := steps.(value.List); len(inner) != 1 {
		t.Errorf("job[1] has %d steps, want 1", len(inner))
	} else if run, _ := inner[0].(*value.Map).Get("run"); run.Native() != "smoke" {
		t.Errorf("job[1] step = %v, want smoke", run.Native())
	}
}

// Scenario C: an unterminated string must report the actual offending line.
func TestParse_TOMLSyntaxErrorLine(t *testing.T) {
	src := "a = 1\nb = 2\nc = \"unterminated\n"
	_, err := Parse([]byte(src), FormatTOML, Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
	if se.Line != 3 {
		t.Errorf("error line = %d, want 3 (got: %v)", se.Line, se)
	}
}

// Scenario D: two CSV records in file order, independently addressable.
func TestParse_CSVRecords(t *testing.T) {
	doc := mustParse(t, "hostname,ip\nweb01,192.168.1.101\nweb02,192.168.1.102\n", FormatCSV)

	rows, ok := doc.Root.Get(DefaultCSVRowsKey)
	if !ok {
		t.Fatalf("missing %q root key", DefaultCSVRowsKey)
	}
	list := rows.(value.List)
	if len(list) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(list))
	}
	for i, wantHost := range []string{"web01", "web02"} {
		row := list[i].(*value.Map)
		if got := row.Keys(); !reflect.DeepEqual(got, []string{"hostname", "ip"}) {
			t.Errorf("row %d keys = %v", i, got)
		}
		host, _ := row.Get("hostname")
		if host.Native() != wantHost {
			t.Errorf("row %d hostname = %v, want %s", i, host.Native(), wantHost)
		}
	}
}

func TestParse_CSVTypeCoercion(t *testing.T) {
	doc := mustParse(t, "name,count,ratio,active\nweb01,3,0.5,true\n", FormatCSV)
	rows, _ := doc.Root.Get(DefaultCSVRowsKey)
	row := rows.(value.List)[0].(*value.Map)

	cases := map[string]value.Kind{
		"name":   value.KindString,
		"count":  value.KindNumber,
		"ratio":  value.KindNumber,
		"active": value.KindBool,
	}
	for key, kind := range cases {
		v, _ := row.Get(key)
		if v.Kind() != kind {
			t.Errorf("%s kind = %v, want %v", key, v.Kind(), kind)
		}
	}
}

func TestParse_CSVEmptyCells(t *testing.T) {
	src := "a,b\n1,\n"

	doc := mustParse(t, src, FormatCSV)
	rows, _ := doc.Root.Get(DefaultCSVRowsKey)
	b, _ := rows.(value.List)[0].(*value.Map).Get("b")
	if b.Kind() != value.KindNull {
		t.Errorf("empty cell kind = %v, want null", b.Kind())
	}

	doc, err := Parse([]byte(src), FormatCSV, Options{FillEmpty: true, FillEmptyWith: "#"})
	if err != nil {
		t.Fatalf("Parse with fill failed: %v", err)
	}
	rows, _ = doc.Root.Get(DefaultCSVRowsKey)
	b, _ = rows.(value.List)[0].(*value.Map).Get("b")
	if b.Native() != "#" {
		t.Errorf("filled cell = %v, want #", b.Native())
	}
}

func TestParse_CSVRaggedRowFails(t *testing.T) {
	_, err := Parse([]byte("a,b\n1,2,3\n"), FormatCSV, Options{})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError for ragged row, got %v", err)
	}
	if se.Line != 2 {
		t.Errorf("error line = %d, want 2", se.Line)
	}
}

func TestParse_CSVDuplicateHeaderWarns(t *testing.T) {
	doc := mustParse(t, "host,host\na,b\n", FormatCSV)
	rows, _ := doc.Root.Get(DefaultCSVRowsKey)
	host, _ := rows.(value.List)[0].(*value.Map).Get("host")
	if host.Native() != "b" {
		t.Errorf("duplicate header should resolve last-write-wins, got %v", host.Native())
	}
	if len(doc.Warnings) == 0 {
		t.Error("expected a duplicate-header warning")
	}
}

func TestParse_CustomRowsKey(t *testing.T) {
	doc, err := Parse([]byte("a\n1\n"), FormatCSV, Options{CSVRowsKey: "records"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := doc.Root.Get("records"); !ok {
		t.Errorf("rows should live under the custom key, keys = %v", doc.Root.Keys())
	}
}

func TestParse_SizeLimit(t *testing.T) {
	over := make([]byte, MaxInputBytes+1)
	for i := range over {
		over[i] = 'a'
	}
	_, err := Parse(over, FormatYAML, Options{})
	var sl *SizeLimitError
	if !errors.As(err, &sl) {
		t.Fatalf("expected *SizeLimitError, got %v", err)
	}

	// Exactly at the limit the size check must pass.
	exact := append(make([]byte, 0, MaxInputBytes), []byte("key: ok\n")...)
	exact = append(exact, make([]byte, MaxInputBytes-len(exact))...)
	for i := 8; i < len(exact); i++ {
		exact[i] = ' '
	}
	if _, err := Parse(exact, FormatYAML, Options{}); err != nil {
		t.Errorf("input at the limit should parse, got %v", err)
	}
}

func TestParse_EmptyInputRecoverable(t *testing.T) {
	for _, in := range []string{"", "   \n\t\n"} {
		doc, err := Parse([]byte(in), FormatYAML, Options{})
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("Parse(%q) err = %v, want ErrEmptyInput", in, err)
		}
		if doc == nil || doc.Root.Len() != 0 {
			t.Errorf("empty input must still yield an empty document")
		}
	}
}

func TestFormatFromExtension(t *testing.T) {
	cases := []struct {
		ext  string
		want Format
		ok   bool
	}{
		{"yaml", FormatYAML, true},
		{".yml", FormatYAML, true},
		{"TOML", FormatTOML, true},
		{"csv", FormatCSV, true},
		{"json", 0, false},
	}
	for _, c := range cases {
		got, ok := FormatFromExtension(c.ext)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("FormatFromExtension(%q) = %v, %v", c.ext, got, ok)
		}
	}
}

// Round-trip key-set equality over all three formats for equivalent data.
// CSV keys live on the record maps under the rows key.
func TestParse_KeySetRoundTrip(t *testing.T) {
	wantKeys := []string{"name", "ip", "port"}
	inputs := map[Format]string{
		FormatYAML: "name: web01\nip: 192.168.1.101\nport: 22\n",
		FormatTOML: "name = \"web01\"\nip = \"192.168.1.101\"\nport = 22\n",
		FormatCSV:  "name,ip,port\nweb01,192.168.1.101,22\n",
	}
	for format, src := range inputs {
		doc := mustParse(t, src, format)
		root := doc.Root
		if format == FormatCSV {
			rows, _ := root.Get(DefaultCSVRowsKey)
			root = rows.(value.List)[0].(*value.Map)
		}
		if got := root.Keys(); !reflect.DeepEqual(got, wantKeys) {
			t.Errorf("%v keys = %v, want %v", format, got, wantKeys)
		}
	}
}
