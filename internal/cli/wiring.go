package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/config"
	"github.com/lucasnoah/cibot/internal/db"
	"github.com/lucasnoah/cibot/internal/docbuild"
	"github.com/lucasnoah/cibot/internal/engine"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/github"
	"github.com/lucasnoah/cibot/internal/gitlab"
	"github.com/lucasnoah/cibot/internal/modules"
	"github.com/lucasnoah/cibot/internal/telemetry"
)

// newForge builds the forge backend for cfg. Tests replace it.
var newForge = func(cfg *config.Config) (forge.Forge, error) {
	switch cfg.Forge.Kind {
	case "gitlab":
		return gitlab.NewClient(cfg.Forge.Token(), cfg.Forge.BaseURL, cfg.Forge.Project)
	default:
		return github.NewClient(&github.ExecRunner{Token: cfg.Forge.Token()}, cfg.Forge.Owner, cfg.Forge.Repo), nil
	}
}

// loadConfig reads the configuration and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config:\n%s", config.Join(errs))
	}
	return cfg, nil
}

func openAudit(cfg *config.Config) (*db.DB, error) {
	dsn := cfg.Audit.DSN
	if dsn == "" {
		p, err := db.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dsn = p
	}
	d, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return d, nil
}

type closer func() error

func openDocStore(ctx context.Context, cfg *config.Config) (docbuild.Store, closer, error) {
	if cfg.Docs.RedisAddr != "" {
		rs := docbuild.NewRedisStore(cfg.Docs.RedisAddr, cfg.Docs.RedisPassword, cfg.Docs.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Docs.RedisAddr, err)
		}
		return rs, rs.Close, nil
	}
	if cfg.Docs.MarkerDir != "" {
		if err := os.MkdirAll(cfg.Docs.MarkerDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("mkdir %s: %w", cfg.Docs.MarkerDir, err)
		}
		return docbuild.NewFileStore(cfg.Docs.MarkerDir), nil, nil
	}
	fs, err := docbuild.DefaultFileStore()
	if err != nil {
		return nil, nil, err
	}
	return fs, nil, nil
}

// newEngine wires an Engine from the loaded config. The returned cleanup
// flushes telemetry and closes stores.
func newEngine(cmd *cobra.Command) (*engine.Engine, *config.Config, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	var closers []closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, nil, nil, err
	}
	closers = append(closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tel.Shutdown(sctx)
	})

	f, err := newForge(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if tel != nil {
		f = telemetry.WrapForge(f, cfg.Forge.Kind, nil)
	}

	universe, err := modules.Load(cfg.Modules.File, declaration(cfg))
	if err != nil && !errors.Is(err, modules.ErrNoUniverse) {
		cleanup()
		return nil, nil, nil, err
	}

	docs, closeDocs, err := openDocStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if closeDocs != nil {
		closers = append(closers, closeDocs)
	}

	var audit *db.DB
	if !cfg.Audit.Disabled {
		audit, err = openAudit(cfg)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		closers = append(closers, audit.Close)
	}

	e := engine.NewEngine(f, universe, docs, audit, logger, engine.Opts{
		Namespace:   cfg.Modules.Namespace,
		Repo:        cfg.Forge.Repo,
		Concurrency: cfg.Status.Concurrency,
	})
	return e, cfg, cleanup, nil
}

func parseIssue(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid issue number %q", s)
	}
	if err := forge.ValidateIssueNumber(n); err != nil {
		return 0, err
	}
	return n, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
