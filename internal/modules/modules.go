package modules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lucasnoah/cibot/internal/directive"
)

// ErrNoUniverse is returned when neither a module file nor an inline module
// declaration is configured.
var ErrNoUniverse = errors.New("no module universe configured")

// Group names accepted by Universe.Group.
const (
	GroupDefault = "default"
	GroupNetwork = "network"
	GroupAll     = "all"
)

// Universe is the immutable set of known test modules.
type Universe struct {
	defaults []string
	network  []string
}

// NewUniverse builds a Universe. The two sets must be disjoint.
func NewUniverse(defaults, network []string) (*Universe, error) {
	d := uniqueSorted(defaults)
	n := uniqueSorted(network)
	inDefault := make(map[string]bool, len(d))
	for _, m := range d {
		inDefault[m] = true
	}
	for _, m := range n {
		if inDefault[m] {
			return nil, fmt.Errorf("module %q is listed as both default and network", m)
		}
	}
	return &Universe{defaults: d, network: n}, nil
}

// Default returns the sorted default modules.
func (u *Universe) Default() []string { return append([]string(nil), u.defaults...) }

// Network returns the sorted network modules.
func (u *Universe) Network() []string { return append([]string(nil), u.network...) }

// All returns the sorted union of default and network modules.
func (u *Universe) All() []string {
	return uniqueSorted(append(u.Default(), u.network...))
}

// Group returns the module list for a named group.
func (u *Universe) Group(name string) ([]string, error) {
	switch name {
	case GroupDefault:
		return u.Default(), nil
	case GroupNetwork:
		return u.Network(), nil
	case GroupAll:
		return u.All(), nil
	default:
		return nil, fmt.Errorf("unknown module group %q: must be default, network, or all", name)
	}
}

// Unknown returns the names not in the universe, sorted.
func (u *Universe) Unknown(names []string) []string {
	known := make(map[string]bool)
	for _, m := range u.All() {
		known[m] = true
	}
	var out []string
	for _, n := range uniqueSorted(names) {
		if !known[n] {
			out = append(out, n)
		}
	}
	return out
}

// Resolve turns an aggregated request into the final module list: defaults for
// no request, everything for ALL, otherwise defaults plus the requested names.
// Requested names outside the universe are passed through unchanged.
func Resolve(req directive.Request, u *Universe) []string {
	switch {
	case req.IsAll():
		return u.All()
	case req.IsNone():
		return u.Default()
	default:
		return uniqueSorted(append(u.Default(), req.List()...))
	}
}

// Qualify prefixes every module with namespace and a dot. An empty namespace
// returns the list unchanged.
func Qualify(list []string, namespace string) []string {
	out := make([]string, len(list))
	for i, m := range list {
		if namespace == "" {
			out[i] = m
			continue
		}
		out[i] = strings.TrimSuffix(namespace, ".") + "." + m
	}
	return out
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
