package directive

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanDocs(t *testing.T) {
	got := Scan("please build the docs +DOCS thanks")
	if len(got) != 1 || got[0].Kind != DocsBuildRequested {
		t.Errorf("Scan = %+v, want one docs directive", got)
	}
	if got := Scan("no docs here, just DOCS"); len(got) != 0 {
		t.Errorf("Scan = %+v, want none", got)
	}
}

func TestScanModules(t *testing.T) {
	got := Scan("+TESTS:clients.fdsn,clients.arclink")
	want := []Directive{{Kind: ModuleTestRequest, Modules: []string{"clients.arclink", "clients.fdsn"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanAll(t *testing.T) {
	got := Scan("+DOCS\n+TESTS:ALL")
	want := []Directive{{Kind: DocsBuildRequested}, {Kind: ModuleTestRequestAll}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanOnlyFirstTestsMarkerPerBlock(t *testing.T) {
	got := Scan("+TESTS:core and later +TESTS:io.mseed")
	want := []Directive{{Kind: ModuleTestRequest, Modules: []string{"core"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanMalformedIsIgnored(t *testing.T) {
	for _, text := range []string{
		"+TESTS:",
		"+TESTS: core",
		"+TESTS:,,,",
		"+TESTS:..",
		"+TESTS:a..b,c",
		"+TESTS:core,io..sac.",
		"TESTS:core",
		"",
	} {
		if got := Scan(text); len(got) != 0 {
			t.Errorf("Scan(%q) = %+v, want none", text, got)
		}
	}
}

func TestScanTrimsSentencePeriods(t *testing.T) {
	got := Scan("Run +TESTS:clients.fdsn,io.sac.")
	want := []Directive{{Kind: ModuleTestRequest, Modules: []string{"clients.fdsn", "io.sac"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanAllWithSentencePeriod(t *testing.T) {
	for _, text := range []string{"Please run +TESTS:ALL.", "+TESTS:ALL..."} {
		got := Scan(text)
		want := []Directive{{Kind: ModuleTestRequestAll}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Scan(%q) mismatch (-want +got):\n%s", text, diff)
		}
	}
	req := Aggregate([]string{"Please run +TESTS:ALL."})
	if !req.IsAll() {
		t.Errorf("Aggregate = %+v, want ALL", req)
	}
}

func TestDocsRequested(t *testing.T) {
	if DocsRequested([]string{"body", "comment"}) {
		t.Error("expected no docs request")
	}
	if !DocsRequested([]string{"body", "lgtm", "+DOCS"}) {
		t.Error("expected docs request from a later comment")
	}
}
