package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lucasnoah/cibot/internal/config"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/forge/forgetest"
	"github.com/lucasnoah/cibot/internal/status"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), config.Telemetry{}, "dev")
	if err != nil {
		t.Fatal(err)
	}
	if tel != nil {
		t.Error("expected nil telemetry without endpoint")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown: %v", err)
	}
}

func TestEndpointURL(t *testing.T) {
	tests := map[string]string{
		"localhost:4318":                     "http://localhost:4318/v1/traces",
		"https://otel.example.com/":          "https://otel.example.com/v1/traces",
		"https://otel.example.com/v1/traces": "https://otel.example.com/v1/traces",
	}
	for in, want := range tests {
		if got := endpointURL(in); got != want {
			t.Errorf("endpointURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, tp
}

func TestWrapForgeRecordsSpans(t *testing.T) {
	sr, tp := newRecorder(t)
	fake := &forgetest.Fake{
		Issues:   map[int]string{1541: "+DOCS"},
		Branches: map[string]string{"master": "abc"},
		Commits:  map[string]time.Time{"abc": time.Unix(0, 0)},
	}
	f := WrapForge(fake, "github", tp)
	ctx := context.Background()

	if _, err := f.IssueText(ctx, 1541); err != nil {
		t.Fatal(err)
	}
	if _, err := f.BranchTip(ctx, "master"); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateStatus(ctx, forge.StatusOpts{SHA: "abc", State: status.StatePending, Context: "docs"}); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	want := []string{"forge.IssueText", "forge.BranchTip", "forge.CreateStatus"}
	for i, s := range spans {
		if s.Name() != want[i] {
			t.Errorf("span %d = %q, want %q", i, s.Name(), want[i])
		}
	}
	if fake.CreatedCount() != 1 {
		t.Error("wrapped call did not reach the forge")
	}
}

func TestWrapForgeRecordsErrors(t *testing.T) {
	sr, tp := newRecorder(t)
	boom := errors.New("boom")
	f := WrapForge(&forgetest.Fake{Err: boom}, "gitlab", tp)

	if _, err := f.Statuses(context.Background(), "abc"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want error", spans[0].Status().Code)
	}
}
