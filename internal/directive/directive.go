package directive

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies a directive recovered from issue text.
type Kind string

const (
	DocsBuildRequested   Kind = "docs"
	ModuleTestRequest    Kind = "tests"
	ModuleTestRequestAll Kind = "tests_all"
)

// AllSentinel is the +TESTS payload meaning "test every module".
const AllSentinel = "ALL"

// Directive is one control instruction found in a text block.
type Directive struct {
	Kind    Kind
	Modules []string // set for ModuleTestRequest, sorted
}

var (
	docsRe  = regexp.MustCompile(`\+DOCS`)
	testsRe = regexp.MustCompile(`\+TESTS:([a-zA-Z0-9_\.,]*)`)
)

// Scan extracts directives from a single text block. Only the first +TESTS
// marker in a block is honored. Scan never fails: text that does not match
// a grammar simply yields nothing.
func Scan(text string) []Directive {
	var out []Directive
	if docsRe.MatchString(text) {
		out = append(out, Directive{Kind: DocsBuildRequested})
	}

	m := testsRe.FindStringSubmatch(text)
	if m == nil {
		return out
	}
	if strings.TrimRight(m[1], ".") == AllSentinel {
		return append(out, Directive{Kind: ModuleTestRequestAll})
	}
	if mods, ok := splitModules(m[1]); ok && len(mods) > 0 {
		out = append(out, Directive{Kind: ModuleTestRequest, Modules: mods})
	}
	return out
}

// splitModules splits a comma separated list, dropping blanks and duplicates.
// A trailing sentence period is not part of a name. A malformed dotted name
// invalidates the whole list.
func splitModules(list string) ([]string, bool) {
	seen := make(map[string]bool)
	var mods []string
	for _, name := range strings.Split(list, ",") {
		name = strings.Trim(name, ".")
		if strings.Contains(name, "..") {
			return nil, false
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		mods = append(mods, name)
	}
	sort.Strings(mods)
	return mods, true
}

// DocsRequested reports whether any block asks for a documentation build.
func DocsRequested(blocks []string) bool {
	for _, b := range blocks {
		for _, d := range Scan(b) {
			if d.Kind == DocsBuildRequested {
				return true
			}
		}
	}
	return false
}
