package directive

import "sort"

// Request is the aggregate module-test request over a whole discussion.
// The zero value means no specific modules were requested.
type Request struct {
	all     bool
	modules map[string]bool
}

// None is the empty request.
func None() Request { return Request{} }

// All is the request to test every module.
func All() Request { return Request{all: true} }

// Modules builds a request for the given module names.
func Modules(names ...string) Request {
	r := Request{}
	for _, n := range names {
		r = r.add(n)
	}
	return r
}

func (r Request) add(name string) Request {
	if r.all {
		return r
	}
	m := make(map[string]bool, len(r.modules)+1)
	for k := range r.modules {
		m[k] = true
	}
	m[name] = true
	return Request{modules: m}
}

// IsAll reports whether every module was requested.
func (r Request) IsAll() bool { return r.all }

// IsNone reports whether nothing specific was requested.
func (r Request) IsNone() bool { return !r.all && len(r.modules) == 0 }

// List returns the requested module names sorted. It is nil for None and All.
func (r Request) List() []string {
	if r.all || len(r.modules) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.modules))
	for k := range r.modules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Union merges two requests. All dominates.
func (r Request) Union(o Request) Request {
	if r.all || o.all {
		return All()
	}
	out := r
	for k := range o.modules {
		out = out.add(k)
	}
	return out
}

// Aggregate scans every block and merges the module-test directives. A +TESTS:ALL
// anywhere wins regardless of position; every historical comment counts, there
// is no notion of retraction.
func Aggregate(blocks []string) Request {
	req := None()
	for _, b := range blocks {
		for _, d := range Scan(b) {
			switch d.Kind {
			case ModuleTestRequestAll:
				req = All()
			case ModuleTestRequest:
				req = req.Union(Modules(d.Modules...))
			}
		}
	}
	return req
}
