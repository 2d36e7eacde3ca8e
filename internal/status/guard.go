package status

// WriteOpts controls when a proposed status may be written.
type WriteOpts struct {
	// OnlyWhenChanged skips the write when the current state already equals
	// the proposed one.
	OnlyWhenChanged bool
	// OnlyWhenNoStatusYet skips the write when the context already has any
	// state. It takes precedence over OnlyWhenChanged.
	OnlyWhenNoStatusYet bool
}

// NeedsLookup reports whether the guard needs the current state at all.
func (o WriteOpts) NeedsLookup() bool {
	return o.OnlyWhenChanged || o.OnlyWhenNoStatusYet
}

// Decision is the outcome of the write guard.
type Decision struct {
	Write  bool   `json:"write"`
	Reason string `json:"reason,omitempty"`
}

// Skip reasons.
const (
	ReasonHasStatus = "commit already has a status"
	ReasonUnchanged = "status would not change"
)

// Decide applies the write guard. current is "" when the commit has no state
// for the context. The forge status API is append-only with a per-commit cap,
// so a skipped write is the common case on repeated polls.
func Decide(current State, proposed State, opts WriteOpts) (Decision, error) {
	if !proposed.Valid() {
		return Decision{}, &InvalidStateError{Value: string(proposed)}
	}
	if opts.OnlyWhenNoStatusYet && current != "" {
		return Decision{Reason: ReasonHasStatus}, nil
	}
	if opts.OnlyWhenChanged && current == proposed {
		return Decision{Reason: ReasonUnchanged}, nil
	}
	return Decision{Write: true}, nil
}

// ShouldWrite is Decide without the reason.
func ShouldWrite(current State, proposed State, opts WriteOpts) (bool, error) {
	d, err := Decide(current, proposed, opts)
	if err != nil {
		return false, err
	}
	return d.Write, nil
}
