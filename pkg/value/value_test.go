package value

import (
	"reflect"
	"strings"
	"testing"
)

func TestMap_OrderPreserved(t *testing.T) {
	m := NewMap()
	m.Set("zebra", String("z"))
	m.Set("alpha", String("a"))
	m.Set("mid", Int(1))

	got := m.Keys()
	want := []string{"zebra", "alpha", "mid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestMap_SetReplacesInPlace(t *testing.T) {
	m := NewMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	replaced := m.Set("a", Int(3))
	if !replaced {
		t.Error("Set on an existing key should report a replacement")
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("key order changed on replacement: %v", got)
	}
	v, _ := m.Get("a")
	if v.(Number).String() != "3" {
		t.Errorf("expected last write to win, got %v", v)
	}
}

func TestNumber_Formatting(t *testing.T) {
	if got := Int(42).String(); got != "42" {
		t.Errorf("Int(42).String() = %q", got)
	}
	if got := Float(3.5).String(); got != "3.5" {
		t.Errorf("Float(3.5).String() = %q", got)
	}
	if Int(42).Native() != int64(42) {
		t.Error("Int should convert to int64")
	}
	if Float(3.5).Native() != 3.5 {
		t.Error("Float should convert to float64")
	}
}

func TestNative_FreshCopy(t *testing.T) {
	m := NewMap()
	m.Set("host", String("web01"))
	first := m.Native().(map[string]any)
	first["host"] = "mutated"

	second := m.Native().(map[string]any)
	if second["host"] != "web01" {
		t.Error("Native() must not share state between calls")
	}
}

func TestDump(t *testing.T) {
	m := NewMap()
	m.Set("name", String("web01"))
	m.Set("count", Int(2))
	m.Set("tags", List{String("prod"), Null{}})

	out := Dump(m)
	for _, want := range []string{`"name": "web01"`, `"count": 2`, `"tags": [`, "null"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q:\n%s", want, out)
		}
	}
	// Declaration order must survive into the dump.
	if strings.Index(out, `"name"`) > strings.Index(out, `"count"`) {
		t.Errorf("Dump lost key order:\n%s", out)
	}
}

func TestFromNative(t *testing.T) {
	v := FromNative(map[string]any{
		"b": []any{int64(1), 2.5, true, nil},
		"a": "text",
	})
	m, ok := v.(*Map)
	if !ok {
		t.Fatalf("expected *Map, got %T", v)
	}
	// Plain maps sort their keys for determinism.
	if !reflect.DeepEqual(m.Keys(), []string{"a", "b"}) {
		t.Errorf("FromNative keys = %v", m.Keys())
	}
	list, _ := m.Get("b")
	if list.Kind() != KindList {
		t.Fatalf("expected list, got %v", list.Kind())
	}
	kinds := []Kind{KindNumber, KindNumber, KindBool, KindNull}
	for i, item := range list.(List) {
		if item.Kind() != kinds[i] {
			t.Errorf("item %d kind = %v, want %v", i, item.Kind(), kinds[i])
		}
	}
}
