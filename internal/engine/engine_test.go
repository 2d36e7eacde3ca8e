package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/ciconf"
	"github.com/lucasnoah/cibot/internal/db"
	"github.com/lucasnoah/cibot/internal/docbuild"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/forge/forgetest"
	"github.com/lucasnoah/cibot/internal/modules"
	"github.com/lucasnoah/cibot/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2016, 8, 22, 22, 52, 45, 0, time.UTC)

func testUniverse(t *testing.T) *modules.Universe {
	t.Helper()
	u, err := modules.NewUniverse([]string{"core", "clients.arclink"}, []string{"clients.fdsn", "geodetics"})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func testAudit(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open audit db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate audit db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

type fixture struct {
	engine *Engine
	forge  *forgetest.Fake
	docs   *docbuild.FileStore
	audit  *db.DB
}

func newFixture(t *testing.T, f *forgetest.Fake) *fixture {
	t.Helper()
	if f.Now == nil {
		f.Now = func() time.Time { return t0 }
	}
	docs := docbuild.NewFileStore(t.TempDir())
	audit := testAudit(t)
	e := NewEngine(f, testUniverse(t), docs, audit, zap.NewNop(), Opts{Namespace: "obspy", Repo: "obspy", Concurrency: 4})
	e.now = func() time.Time { return t0 }
	return &fixture{engine: e, forge: f, docs: docs, audit: audit}
}

func TestModuleTestList(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		comments []string
		want     []string
	}{
		{"no directive", "just a fix", nil, []string{"clients.arclink", "core"}},
		{"worked example", "+TESTS:clients.arclink,clients.fdsn", nil, []string{"clients.arclink", "clients.fdsn", "core"}},
		{"all in a comment", "body", []string{"+TESTS:io.sac", "+TESTS:ALL"}, []string{"clients.arclink", "clients.fdsn", "core", "geodetics"}},
		{"union across comments", "+TESTS:geodetics", []string{"+TESTS:clients.fdsn."}, []string{"clients.arclink", "clients.fdsn", "core", "geodetics"}},
		{"unknown module passes through", "+TESTS:io.sac", nil, []string{"clients.arclink", "core", "io.sac"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, &forgetest.Fake{
				Issues: map[int]string{1541: tt.body},
				Notes:  map[int][]string{1541: tt.comments},
			})
			got, err := fx.engine.ModuleTestList(context.Background(), 1541)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("module list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestModuleTestListWithoutUniverse(t *testing.T) {
	e := NewEngine(&forgetest.Fake{Issues: map[int]string{1: ""}}, nil, nil, nil, nil, Opts{})
	if _, err := e.ModuleTestList(context.Background(), 1); !errors.Is(err, modules.ErrNoUniverse) {
		t.Errorf("expected ErrNoUniverse, got %v", err)
	}
	if _, err := e.MakeCIConfig(context.Background(), 1, ""); !errors.Is(err, modules.ErrNoUniverse) {
		t.Errorf("expected ErrNoUniverse, got %v", err)
	}
}

func TestModuleGroup(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	tests := []struct {
		group string
		want  []string
	}{
		{modules.GroupDefault, []string{"obspy.clients.arclink", "obspy.core"}},
		{modules.GroupNetwork, []string{"obspy.clients.fdsn", "obspy.geodetics"}},
		{modules.GroupAll, []string{"obspy.clients.arclink", "obspy.clients.fdsn", "obspy.core", "obspy.geodetics"}},
	}
	for _, tt := range tests {
		got, err := fx.engine.ModuleGroup(tt.group)
		if err != nil {
			t.Fatalf("ModuleGroup(%q): %v", tt.group, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ModuleGroup(%q) mismatch (-want +got):\n%s", tt.group, diff)
		}
	}
	if _, err := fx.engine.ModuleGroup("slow"); err == nil {
		t.Error("expected error for unknown group")
	}
	e := NewEngine(&forgetest.Fake{}, nil, nil, nil, nil, Opts{})
	if _, err := e.ModuleGroup(modules.GroupAll); !errors.Is(err, modules.ErrNoUniverse) {
		t.Errorf("expected ErrNoUniverse, got %v", err)
	}
}

func TestModuleTestListPropagatesNotFound(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	_, err := fx.engine.ModuleTestList(context.Background(), 99)
	var nf *forge.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestMakeCIConfig(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{
		Issues: map[int]string{1541: "+TESTS:clients.fdsn"},
		Notes:  map[int][]string{1541: {"please also +DOCS"}},
	})
	path := filepath.Join(t.TempDir(), "obspy_config", "conf.json")

	rec, err := fx.engine.MakeCIConfig(context.Background(), 1541, path)
	if err != nil {
		t.Fatal(err)
	}
	want := ciconf.Record{
		ModuleList:       "obspy.clients.arclink,obspy.clients.fdsn,obspy.core",
		ModuleListSpaces: "clients.arclink clients.fdsn core",
		Docs:             true,
	}
	if diff := cmp.Diff(want, *rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	stored, err := ciconf.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, *stored); diff != "" {
		t.Errorf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitStatus(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{Records: map[string][]status.Record{
		"abc": {
			{Context: "docker-testbot", State: status.StatePending, UpdatedAt: t0},
			{Context: "docker-testbot", State: status.StateSuccess, UpdatedAt: t0.Add(time.Minute)},
			{Context: "coverage", State: status.StateFailure, UpdatedAt: t0},
		},
	}})
	ctx := context.Background()

	st, ok, err := fx.engine.CommitStatus(ctx, "abc", "docker-testbot")
	if err != nil || !ok || st != status.StateSuccess {
		t.Errorf("docker-testbot = %q, %v, %v", st, ok, err)
	}
	st, ok, err = fx.engine.CommitStatus(ctx, "abc", "")
	if err != nil || !ok || st != status.StateFailure {
		t.Errorf("combined = %q, %v, %v", st, ok, err)
	}
	_, ok, err = fx.engine.CommitStatus(ctx, "abc", "appveyor")
	if err != nil || ok {
		t.Errorf("absent context reported ok=%v err=%v", ok, err)
	}
}

func TestSetCommitStatusGuard(t *testing.T) {
	tests := []struct {
		name      string
		existing  []status.Record
		opts      status.WriteOpts
		wantWrite bool
		reason    string
	}{
		{"unguarded", []status.Record{{Context: "ctx", State: status.StateSuccess, UpdatedAt: t0}}, status.WriteOpts{}, true, ""},
		{"unchanged skipped", []status.Record{{Context: "ctx", State: status.StateSuccess, UpdatedAt: t0}}, status.WriteOpts{OnlyWhenChanged: true}, false, status.ReasonUnchanged},
		{"no status yet but has one", []status.Record{{Context: "ctx", State: status.StatePending, UpdatedAt: t0}}, status.WriteOpts{OnlyWhenNoStatusYet: true}, false, status.ReasonHasStatus},
		{"no status yet and none", nil, status.WriteOpts{OnlyWhenNoStatusYet: true, OnlyWhenChanged: true}, true, ""},
		{"other context ignored", []status.Record{{Context: "other", State: status.StateSuccess, UpdatedAt: t0}}, status.WriteOpts{OnlyWhenNoStatusYet: true}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, &forgetest.Fake{Records: map[string][]status.Record{"abc": tt.existing}})
			d, err := fx.engine.SetCommitStatus(context.Background(), SetStatusOpts{
				StatusOpts: forge.StatusOpts{SHA: "abc", State: status.StateSuccess, Context: "ctx", Description: "ok"},
				WriteOpts:  tt.opts,
			})
			if err != nil {
				t.Fatal(err)
			}
			if d.Write != tt.wantWrite || d.Reason != tt.reason {
				t.Errorf("decision = %+v, want write=%v reason=%q", d, tt.wantWrite, tt.reason)
			}
			wantCreated := 0
			if tt.wantWrite {
				wantCreated = 1
			}
			if got := fx.forge.CreatedCount(); got != wantCreated {
				t.Errorf("created %d statuses, want %d", got, wantCreated)
			}

			rows, err := fx.audit.ListStatusWrites("abc", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 1 || rows[0].Written != tt.wantWrite || rows[0].Reason != tt.reason {
				t.Errorf("audit rows = %+v", rows)
			}
			if rows[0].RunID != fx.engine.RunID() {
				t.Errorf("run id = %q, want %q", rows[0].RunID, fx.engine.RunID())
			}
		})
	}
}

func TestSetCommitStatusInvalidStateDoesNoIO(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	_, err := fx.engine.SetCommitStatus(context.Background(), SetStatusOpts{
		StatusOpts: forge.StatusOpts{SHA: "abc", State: "green", Context: "ctx"},
		WriteOpts:  status.WriteOpts{OnlyWhenChanged: true},
	})
	var ise *status.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if len(fx.forge.Calls) != 0 {
		t.Errorf("forge called for invalid state: %v", fx.forge.Calls)
	}
}

func TestSetCommitStatusIdempotentWhenUnchanged(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	opts := SetStatusOpts{
		StatusOpts: forge.StatusOpts{SHA: "abc", State: status.StateFailure, Context: "ctx"},
		WriteOpts:  status.WriteOpts{OnlyWhenChanged: true},
	}
	for range 3 {
		if _, err := fx.engine.SetCommitStatus(context.Background(), opts); err != nil {
			t.Fatal(err)
		}
	}
	if got := fx.forge.CreatedCount(); got != 1 {
		t.Errorf("expected exactly one write, got %d", got)
	}
}

func TestMarkOpenPullRequestsPending(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{
		Pulls: []forge.PullRequest{
			{Number: 1541, HeadSHA: "aaa", HeadOwner: "megies"},
			{Number: 1600, HeadSHA: "bbb", HeadOwner: "krischer"},
		},
		Records: map[string][]status.Record{
			"bbb": {{Context: "docker-testbot", State: status.StateSuccess, UpdatedAt: t0}},
		},
	})

	results, err := fx.engine.MarkOpenPullRequestsPending(context.Background(), "docker-testbot", "not available yet")
	if err != nil {
		t.Fatal(err)
	}
	want := []PendingResult{
		{Number: 1541, SHA: "aaa", Written: true},
		{Number: 1600, SHA: "bbb", Written: false, Reason: status.ReasonHasStatus},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if len(fx.forge.Created) != 1 || fx.forge.Created[0].State != status.StatePending {
		t.Errorf("created = %+v", fx.forge.Created)
	}
}

func TestBuildTargets(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{
		Branches: map[string]string{"master": "m1", "maintenance_1.0.x": "m2"},
		Pulls: []forge.PullRequest{
			{Number: 1541, HeadSHA: "p1", HeadOwner: "megies"},
			{Number: 1600, HeadSHA: "p2", HeadOwner: "krischer"},
			{Number: 1601, HeadSHA: "p3", HeadOwner: "obspy"},
		},
		Records: map[string][]status.Record{
			"m2": {{Context: "docker-testbot", State: status.StateSuccess, UpdatedAt: t0}},
			"p2": {{Context: "docker-testbot", State: status.StatePending, UpdatedAt: t0}},
			"p3": {{Context: "docker-testbot", State: status.StateFailure, UpdatedAt: t0}},
		},
	})

	got, err := fx.engine.BuildTargets(context.Background(), "docker-testbot", []string{"master", "maintenance_1.0.x"}, true)
	if err != nil {
		t.Fatal(err)
	}
	want := "XXX_obspy:m1 1541_megies:p1 1600_krischer:p2"
	if got != want {
		t.Errorf("BuildTargets = %q, want %q", got, want)
	}
}

func TestBuildTargetsNothingConfigured(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	got, err := fx.engine.BuildTargets(context.Background(), "docker-testbot", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if len(fx.forge.Calls) != 0 {
		t.Errorf("forge should not be called: %v", fx.forge.Calls)
	}
}

func TestBuildTargetsUnknownBranch(t *testing.T) {
	fx := newFixture(t, &forgetest.Fake{})
	_, err := fx.engine.BuildTargets(context.Background(), "ctx", []string{"gone"}, false)
	var nf *forge.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func docsFake() *forgetest.Fake {
	return &forgetest.Fake{
		Issues: map[int]string{1541: "docs please +DOCS", 1600: "no docs", 1601: "body"},
		Notes:  map[int][]string{1601: {"+DOCS"}},
		Pulls: []forge.PullRequest{
			{Number: 1541, HeadSHA: "p1", HeadOwner: "megies", HeadRef: "docs"},
			{Number: 1600, HeadSHA: "p2", HeadOwner: "krischer", HeadRef: "fix"},
			{Number: 1601, HeadSHA: "p3", HeadOwner: "obspy", HeadRef: "manual"},
		},
		Commits: map[string]time.Time{"p1": t0, "p3": t0.Add(time.Hour)},
	}
}

func TestDocBuildRequests(t *testing.T) {
	fx := newFixture(t, docsFake())
	prs, err := fx.engine.DocBuildRequests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var numbers []int
	for _, pr := range prs {
		numbers = append(numbers, pr.Number)
	}
	if diff := cmp.Diff([]int{1541, 1601}, numbers); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueDocBuilds(t *testing.T) {
	fx := newFixture(t, docsFake())
	ctx := context.Background()

	// 1601 was built after its head commit, 1541 never built.
	if _, err := fx.docs.Touch(ctx, 1601, "obspy", "manual", t0); err != nil {
		t.Fatal(err)
	}
	if err := fx.docs.MarkDone(ctx, 1601, t0.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	actions, err := fx.engine.QueueDocBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []DocAction{
		{Number: 1541, SHA: "p1", CommitTime: t0, Action: db.DocsActionQueued},
		{Number: 1601, SHA: "p3", CommitTime: t0.Add(time.Hour), Action: db.DocsActionCurrent},
	}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}

	m, err := fx.engine.DocsMarker(ctx, 1541)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || !m.Queued || m.Fork != "megies" || m.Branch != "docs" {
		t.Errorf("marker 1541 = %+v", m)
	}

	events, err := fx.audit.ListDocsEvents(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 audit events, got %d", len(events))
	}
}

func TestQueueDocBuildsRebuildAfterNewPush(t *testing.T) {
	f := docsFake()
	fx := newFixture(t, f)
	ctx := context.Background()

	if _, err := fx.engine.QueueDocBuilds(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fx.engine.MarkDocsBuilt(ctx, 1541, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	actions, err := fx.engine.QueueDocBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if actions[0].Action != db.DocsActionCurrent {
		t.Errorf("after build, 1541 action = %q", actions[0].Action)
	}

	f.Commits["p1"] = t0.Add(10 * time.Minute)
	actions, err = fx.engine.QueueDocBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if actions[0].Action != db.DocsActionQueued {
		t.Errorf("after new push, 1541 action = %q", actions[0].Action)
	}
}

func TestDocOperationsWithoutStore(t *testing.T) {
	e := NewEngine(docsFake(), nil, nil, nil, zap.NewNop(), Opts{})
	ctx := context.Background()
	if _, err := e.QueueDocBuilds(ctx); !errors.Is(err, ErrNoDocStore) {
		t.Errorf("QueueDocBuilds: expected ErrNoDocStore, got %v", err)
	}
	if err := e.MarkDocsBuilt(ctx, 1, t0); !errors.Is(err, ErrNoDocStore) {
		t.Errorf("MarkDocsBuilt: expected ErrNoDocStore, got %v", err)
	}
	if _, err := e.DocsMarker(ctx, 1); !errors.Is(err, ErrNoDocStore) {
		t.Errorf("DocsMarker: expected ErrNoDocStore, got %v", err)
	}
}
