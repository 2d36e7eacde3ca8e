package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedKinds = map[string]bool{
	"github": true,
	"gitlab": true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	f := cfg.Forge

	if !recognizedKinds[f.Kind] {
		errs = append(errs, ValidationError{Field: "forge.kind", Message: fmt.Sprintf("unrecognized kind %q (want github or gitlab)", f.Kind)})
	}
	switch f.Kind {
	case "github":
		if f.Owner == "" {
			errs = append(errs, ValidationError{Field: "forge.owner", Message: "is required"})
		}
		if f.Repo == "" {
			errs = append(errs, ValidationError{Field: "forge.repo", Message: "is required"})
		}
	case "gitlab":
		if f.Project == "" {
			errs = append(errs, ValidationError{Field: "forge.project", Message: "is required (or set owner and repo)"})
		}
	}
	if f.BaseURL != "" && !strings.HasPrefix(f.BaseURL, "http://") && !strings.HasPrefix(f.BaseURL, "https://") {
		errs = append(errs, ValidationError{Field: "forge.base_url", Message: "must be an http(s) URL"})
	}

	m := cfg.Modules
	if m.Namespace == "" {
		errs = append(errs, ValidationError{Field: "modules.namespace", Message: "is required"})
	}
	if m.File == "" && len(m.Default) == 0 && len(m.Network) == 0 {
		errs = append(errs, ValidationError{Field: "modules", Message: "set modules.file or list modules.default"})
	}
	seen := make(map[string]bool, len(m.Default))
	for i, name := range m.Default {
		seen[name] = true
		validateModuleName(fmt.Sprintf("modules.default[%d]", i), name, &errs)
	}
	for i, name := range m.Network {
		field := fmt.Sprintf("modules.network[%d]", i)
		validateModuleName(field, name, &errs)
		if seen[name] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("module %q is also a default module", name)})
		}
	}

	for i, b := range cfg.Status.Branches {
		if b == "" || strings.HasPrefix(b, "-") {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("status.branches[%d]", i), Message: fmt.Sprintf("invalid branch %q", b)})
		}
	}
	if cfg.Status.Context == "" {
		errs = append(errs, ValidationError{Field: "status.context", Message: "is required"})
	}

	if cfg.Docs.RedisDB < 0 {
		errs = append(errs, ValidationError{Field: "docs.redis_db", Message: "must not be negative"})
	}

	return errs
}

func validateModuleName(field, name string, errs *[]ValidationError) {
	switch {
	case name == "":
		*errs = append(*errs, ValidationError{Field: field, Message: "is empty"})
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, ".."):
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("malformed module name %q", name)})
	}
}

// Join renders validation errors one per line.
func Join(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
