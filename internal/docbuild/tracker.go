package docbuild

import (
	"context"
	"time"
)

// Marker is the per-issue bookkeeping for documentation builds.
type Marker struct {
	Issue  int    `json:"issue"`
	Fork   string `json:"fork"`
	Branch string `json:"branch"`
	// RequestedAt is the newest requesting commit time seen. It never decreases.
	RequestedAt time.Time `json:"requested_at"`
	// DoneAt is when the last build finished; zero when no build has completed.
	DoneAt time.Time `json:"done_at,omitzero"`
	// Queued is set once a build was queued and not yet picked up.
	Queued bool `json:"queued"`
}

// IsStale reports whether a docs build is needed for a request at t. A missing
// marker is stale. A build that finished at or before t does not cover the
// request; equal timestamps favor rebuilding. Commit times have second
// granularity, so two pushes within one second may under-trigger.
func IsStale(m *Marker, t time.Time) bool {
	if m == nil {
		return true
	}
	if m.DoneAt.IsZero() {
		return true
	}
	return !m.DoneAt.After(t)
}

// Touch returns a copy of m with RequestedAt raised to t when t is newer.
func Touch(m Marker, t time.Time) Marker {
	if t.After(m.RequestedAt) {
		m.RequestedAt = t
	}
	return m
}

// Store persists markers. Implementations merge timestamps with max so that
// concurrent writers never replace a newer time with an older one.
type Store interface {
	// Load returns the marker for issue, or nil when none exists.
	Load(ctx context.Context, issue int) (*Marker, error)
	// Touch creates the marker if needed and raises its request time to t.
	Touch(ctx context.Context, issue int, fork, branch string, t time.Time) (*Marker, error)
	// Queue flags the issue as needing a build.
	Queue(ctx context.Context, issue int) error
	// MarkDone records a finished build at t and clears the queue flag.
	MarkDone(ctx context.Context, issue int, t time.Time) error
}
