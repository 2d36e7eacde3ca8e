package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	DefaultKind               = "github"
	DefaultContext            = "docker-testbot"
	DefaultPendingDescription = "docker testbot results not available yet"
	DefaultServiceName        = "cibot"
	DefaultConcurrency        = 8
)

// DefaultBranches are the branch tips build-targets checks when status.branches
// is unset. Deployments with maintenance branches list them explicitly; a
// branch that does not exist would fail every run with a not-found error.
var DefaultBranches = []string{"master"}

// Token environment variables per forge kind.
const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvGitLabToken = "GITLAB_TOKEN"
)

// Load reads and parses a configuration from the given YAML file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./cibot.yaml, ~/.cibot/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"cibot.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".cibot", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no cibot config found (searched: %v)", candidates)
}

// LoadEnv loads KEY=value pairs from the given .env files (default ./.env)
// without overriding variables already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Token returns the forge credential from the environment.
func (f Forge) Token() string {
	if f.Kind == "gitlab" {
		return os.Getenv(EnvGitLabToken)
	}
	return os.Getenv(EnvGitHubToken)
}

// applyDefaults fills empty fields. Relative module files resolve against the
// config file's directory.
func applyDefaults(cfg *Config, dir string) {
	f := &cfg.Forge
	if f.Kind == "" {
		f.Kind = DefaultKind
	}
	if f.Project == "" && f.Owner != "" && f.Repo != "" {
		f.Project = f.Owner + "/" + f.Repo
	}

	m := &cfg.Modules
	if m.Namespace == "" {
		m.Namespace = f.Repo
	}
	if m.File != "" && !filepath.IsAbs(m.File) && dir != "" {
		m.File = filepath.Join(dir, m.File)
	}

	s := &cfg.Status
	if s.Context == "" {
		s.Context = DefaultContext
	}
	if s.PendingDescription == "" {
		s.PendingDescription = DefaultPendingDescription
	}
	if s.Branches == nil {
		s.Branches = append([]string(nil), DefaultBranches...)
	}
	if s.Concurrency <= 0 {
		s.Concurrency = DefaultConcurrency
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}
