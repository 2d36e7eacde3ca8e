package ciconf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasnoah/cibot/internal/modules"
)

// DefaultPath is where make-config writes unless told otherwise.
const DefaultPath = "obspy_config/conf.json"

// Field names are read by downstream CI scripts and must not change.
const (
	FieldModuleList       = "module_list"
	FieldModuleListSpaces = "module_list_spaces"
	FieldDocs             = "docs"
)

// Record is the resolved CI configuration for one issue.
type Record struct {
	ModuleList       string `json:"module_list"`
	ModuleListSpaces string `json:"module_list_spaces"`
	Docs             bool   `json:"docs"`
}

// NewRecord builds a Record from a resolved module list. module_list carries
// namespace-qualified names joined by commas; module_list_spaces carries the
// bare names joined by spaces.
func NewRecord(list []string, namespace string, docs bool) Record {
	return Record{
		ModuleList:       strings.Join(modules.Qualify(list, namespace), ","),
		ModuleListSpaces: strings.Join(list, " "),
		Docs:             docs,
	}
}

// Write stores r at path atomically.
func Write(path string, r Record) error {
	if err := writeJSON(path, r); err != nil {
		return fmt.Errorf("write ci config: %w", err)
	}
	return nil
}

// Read loads a Record from path.
func Read(path string) (*Record, error) {
	var r Record
	if err := readJSON(path, &r); err != nil {
		return nil, fmt.Errorf("read ci config: %w", err)
	}
	return &r, nil
}

// ReadValue returns one field of the stored config rendered for shell use.
// Booleans print as True/False, the spelling existing CI scripts compare against.
func ReadValue(path, name string) (string, error) {
	var raw map[string]json.RawMessage
	if err := readJSON(path, &raw); err != nil {
		return "", fmt.Errorf("read ci config: %w", err)
	}
	v, ok := raw[name]
	if !ok {
		return "", fmt.Errorf("ci config %s has no value %q", path, name)
	}

	var decoded any
	if err := json.Unmarshal(v, &decoded); err != nil {
		return "", fmt.Errorf("decode value %q: %w", name, err)
	}
	switch x := decoded.(type) {
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case string:
		return x, nil
	default:
		return string(v), nil
	}
}
