package modules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Declaration is the checked-in module table, e.g. modules.yaml:
//
//	default_modules: [core, io.mseed]
//	network_modules: [clients.fdsn]
type Declaration struct {
	Version int      `yaml:"version"`
	Default []string `yaml:"default_modules"`
	Network []string `yaml:"network_modules"`
}

// Empty reports whether the declaration lists no modules at all.
func (d Declaration) Empty() bool {
	return len(d.Default) == 0 && len(d.Network) == 0
}

// Universe converts the declaration.
func (d Declaration) Universe() (*Universe, error) {
	if d.Empty() {
		return nil, ErrNoUniverse
	}
	return NewUniverse(d.Default, d.Network)
}

// LoadFile reads a module declaration from a YAML file.
func LoadFile(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module file: %w", err)
	}
	var d Declaration
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing module YAML: %w", err)
	}
	u, err := d.Universe()
	if err != nil {
		return nil, fmt.Errorf("module file %s: %w", path, err)
	}
	return u, nil
}

// Load picks the module file when path is set, otherwise the inline
// declaration. Having neither is ErrNoUniverse.
func Load(path string, inline Declaration) (*Universe, error) {
	if path != "" {
		return LoadFile(path)
	}
	return inline.Universe()
}
