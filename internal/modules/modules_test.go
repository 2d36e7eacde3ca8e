package modules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasnoah/cibot/internal/directive"
)

func testUniverse(t *testing.T) *Universe {
	t.Helper()
	u, err := NewUniverse(
		[]string{"core", "clients.arclink"},
		[]string{"clients.fdsn", "geodetics"},
	)
	if err != nil {
		t.Fatalf("NewUniverse: %v", err)
	}
	return u
}

func TestResolveNone(t *testing.T) {
	got := Resolve(directive.None(), testUniverse(t))
	want := []string{"clients.arclink", "core"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve(None) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveAll(t *testing.T) {
	got := Resolve(directive.All(), testUniverse(t))
	want := []string{"clients.arclink", "clients.fdsn", "core", "geodetics"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve(All) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRequested(t *testing.T) {
	got := Resolve(directive.Modules("clients.arclink", "clients.fdsn"), testUniverse(t))
	want := []string{"clients.arclink", "clients.fdsn", "core"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve(set) mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvePassesUnknownThrough(t *testing.T) {
	got := Resolve(directive.Modules("not.a.module"), testUniverse(t))
	want := []string{"clients.arclink", "core", "not.a.module"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNoDuplicatesDespiteInput(t *testing.T) {
	u, err := NewUniverse([]string{"core", "core", "a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := Resolve(directive.Modules("core", "a", "b"), u)
	want := []string{"a", "b", "core"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestNewUniverseRejectsOverlap(t *testing.T) {
	if _, err := NewUniverse([]string{"core"}, []string{"core"}); err == nil {
		t.Error("expected error for module in both sets")
	}
}

func TestUniverseIsImmutable(t *testing.T) {
	u := testUniverse(t)
	d := u.Default()
	d[0] = "mutated"
	if u.Default()[0] == "mutated" {
		t.Error("Default() exposed internal slice")
	}
}

func TestGroup(t *testing.T) {
	u := testUniverse(t)
	got, err := u.Group(GroupNetwork)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"clients.fdsn", "geodetics"}, got); diff != "" {
		t.Errorf("network mismatch:\n%s", diff)
	}
	if _, err := u.Group("everything"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestUnknown(t *testing.T) {
	got := testUniverse(t).Unknown([]string{"core", "io.xseed", "geodetics", "io.xseed"})
	if diff := cmp.Diff([]string{"io.xseed"}, got); diff != "" {
		t.Errorf("Unknown mismatch:\n%s", diff)
	}
}

func TestQualify(t *testing.T) {
	got := Qualify([]string{"core", "clients.fdsn"}, "obspy")
	want := []string{"obspy.core", "obspy.clients.fdsn"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Qualify mismatch:\n%s", diff)
	}
	for _, m := range got {
		if strings.HasSuffix(m, ".") || strings.Contains(m, "..") {
			t.Errorf("entry %q ends with a dot", m)
		}
	}
	if diff := cmp.Diff([]string{"core"}, Qualify([]string{"core"}, "")); diff != "" {
		t.Errorf("empty namespace mismatch:\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	content := `
version: 1
default_modules:
  - core
  - clients.arclink
network_modules:
  - clients.fdsn
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if diff := cmp.Diff([]string{"clients.arclink", "clients.fdsn", "core"}, u.All()); diff != "" {
		t.Errorf("All mismatch:\n%s", diff)
	}
}

func TestLoadMissingUniverse(t *testing.T) {
	_, err := Load("", Declaration{})
	if !errors.Is(err, ErrNoUniverse) {
		t.Fatalf("err = %v, want ErrNoUniverse", err)
	}
}

func TestLoadInline(t *testing.T) {
	u, err := Load("", Declaration{Default: []string{"core"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"core"}, u.All()); diff != "" {
		t.Errorf("All mismatch:\n%s", diff)
	}
}
