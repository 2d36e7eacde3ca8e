package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/ciconf"
	"github.com/lucasnoah/cibot/internal/db"
	"github.com/lucasnoah/cibot/internal/directive"
	"github.com/lucasnoah/cibot/internal/docbuild"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/modules"
)

// ErrNoDocStore is returned by doc-build operations when no marker store is configured.
var ErrNoDocStore = errors.New("no doc-build marker store configured")

// Opts holds the non-collaborator settings of an Engine.
type Opts struct {
	// Namespace prefixes module names in module_list.
	Namespace string
	// Repo is the base repository name used in branch build targets.
	Repo string
	// Concurrency bounds parallel forge lookups; <= 0 uses the selector default.
	Concurrency int
}

// Engine answers CI questions for one repository.
type Engine struct {
	forge    forge.Forge
	universe *modules.Universe
	docs     docbuild.Store
	audit    *db.DB
	log      *zap.Logger
	opts     Opts
	runID    string
	now      func() time.Time
}

// NewEngine creates an Engine. universe, docs and audit may be nil; operations
// that need them then fail with ErrNoUniverse or ErrNoDocStore, and decisions
// are not audited.
func NewEngine(
	f forge.Forge,
	universe *modules.Universe,
	docs docbuild.Store,
	audit *db.DB,
	log *zap.Logger,
	opts Opts,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Engine{
		forge:    f,
		universe: universe,
		docs:     docs,
		audit:    audit,
		log:      log.With(zap.String("run_id", runID)),
		opts:     opts,
		runID:    runID,
		now:      time.Now,
	}
}

// RunID identifies this engine's audit rows.
func (e *Engine) RunID() string {
	return e.runID
}

// Request scans an issue's discussion and returns the aggregated module request.
func (e *Engine) Request(ctx context.Context, issue int) (directive.Request, error) {
	blocks, err := forge.Discussion(ctx, e.forge, issue)
	if err != nil {
		return directive.None(), err
	}
	return directive.Aggregate(blocks), nil
}

// ModuleTestList returns the sorted modules to test for an issue.
func (e *Engine) ModuleTestList(ctx context.Context, issue int) ([]string, error) {
	if e.universe == nil {
		return nil, modules.ErrNoUniverse
	}
	req, err := e.Request(ctx, issue)
	if err != nil {
		return nil, err
	}
	list := modules.Resolve(req, e.universe)
	if unknown := e.universe.Unknown(req.List()); len(unknown) > 0 {
		e.log.Warn("requested modules outside the universe",
			zap.Int("issue", issue), zap.Strings("modules", unknown))
	}
	e.log.Debug("resolved module list",
		zap.Int("issue", issue), zap.Bool("all", req.IsAll()), zap.Strings("modules", list))
	return list, nil
}

// ModuleGroup returns a named group of the module universe (default,
// network or all), prefixed with the configured namespace.
func (e *Engine) ModuleGroup(name string) ([]string, error) {
	if e.universe == nil {
		return nil, modules.ErrNoUniverse
	}
	list, err := e.universe.Group(name)
	if err != nil {
		return nil, err
	}
	return modules.Qualify(list, e.opts.Namespace), nil
}

// DocsRequested reports whether any block of the discussion carries +DOCS.
func (e *Engine) DocsRequested(ctx context.Context, issue int) (bool, error) {
	blocks, err := forge.Discussion(ctx, e.forge, issue)
	if err != nil {
		return false, err
	}
	return directive.DocsRequested(blocks), nil
}

// MakeCIConfig resolves the module list and docs flag for an issue and, when
// path is non-empty, writes them as the CI config record.
func (e *Engine) MakeCIConfig(ctx context.Context, issue int, path string) (*ciconf.Record, error) {
	if e.universe == nil {
		return nil, modules.ErrNoUniverse
	}
	blocks, err := forge.Discussion(ctx, e.forge, issue)
	if err != nil {
		return nil, err
	}
	req := directive.Aggregate(blocks)
	list := modules.Resolve(req, e.universe)
	rec := ciconf.NewRecord(list, e.opts.Namespace, directive.DocsRequested(blocks))

	if path != "" {
		if err := ciconf.Write(path, rec); err != nil {
			return nil, err
		}
		e.log.Info("wrote ci config",
			zap.Int("issue", issue), zap.String("path", path), zap.Bool("docs", rec.Docs))
	}
	return &rec, nil
}

func (e *Engine) auditStatus(w db.StatusWrite) {
	if e.audit == nil {
		return
	}
	w.RunID = e.runID
	w.Timestamp = e.now().UTC().Format(db.TimeFormat)
	if err := e.audit.LogStatusWrite(w); err != nil {
		e.log.Warn("audit status write failed", zap.Error(err))
	}
}

func (e *Engine) auditDocs(ev db.DocsEvent) {
	if e.audit == nil {
		return
	}
	ev.RunID = e.runID
	ev.Timestamp = e.now().UTC().Format(db.TimeFormat)
	if err := e.audit.LogDocsEvent(ev); err != nil {
		e.log.Warn("audit docs event failed", zap.Error(err))
	}
}

func wrapIssue(op string, issue int, err error) error {
	return fmt.Errorf("%s for #%d: %w", op, issue, err)
}
