package config

// Config is the top-level configuration structure parsed from cibot.yaml.
type Config struct {
	Forge     Forge     `yaml:"forge"`
	Modules   Modules   `yaml:"modules"`
	Status    Status    `yaml:"status"`
	Docs      Docs      `yaml:"docs"`
	Audit     Audit     `yaml:"audit"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Forge selects the code host and repository.
type Forge struct {
	Kind    string `yaml:"kind"` // github or gitlab
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	BaseURL string `yaml:"base_url"`
	// Project is the GitLab project path or numeric ID. Defaults to owner/repo.
	Project string `yaml:"project"`
}

// Modules declares the test module universe, either through a separate file
// or inline.
type Modules struct {
	Namespace string   `yaml:"namespace"`
	File      string   `yaml:"file"`
	Default   []string `yaml:"default"`
	Network   []string `yaml:"network"`
}

// Status holds commit status defaults used by the status and build-target commands.
type Status struct {
	Context            string   `yaml:"context"`
	PendingDescription string   `yaml:"pending_description"`
	Branches           []string `yaml:"branches"`
	IncludePRs         *bool    `yaml:"include_prs"`
	Concurrency        int      `yaml:"concurrency"`
}

// Docs configures where doc-build markers live. A RedisAddr switches from
// the marker directory to Redis.
type Docs struct {
	MarkerDir     string `yaml:"marker_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Audit points at the decision log. Empty DSN means ~/.cibot/cibot.db.
type Audit struct {
	DSN      string `yaml:"dsn"`
	Disabled bool   `yaml:"disabled"`
}

// Telemetry configures OTLP trace export. Empty Endpoint disables it.
type Telemetry struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// IncludePullRequests reports whether build-targets considers open pull requests.
func (s Status) IncludePullRequests() bool {
	return s.IncludePRs == nil || *s.IncludePRs
}
