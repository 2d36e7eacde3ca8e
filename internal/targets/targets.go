package targets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
	"golang.org/x/sync/errgroup"
)

// BranchLabel stands in for the PR number on branch candidates so the
// LABEL_REPO:REF tokens still split cleanly in shell scripts.
const BranchLabel = "XXX"

// DefaultConcurrency bounds parallel status lookups.
const DefaultConcurrency = 8

// Candidate is a commit that may need a CI run.
type Candidate struct {
	Label string `json:"label"`
	Repo  string `json:"repo"`
	Ref   string `json:"ref"`
	SHA   string `json:"sha"`
}

// String renders the LABEL_REPO:REF token.
func (c Candidate) String() string {
	return fmt.Sprintf("%s_%s:%s", c.Label, c.Repo, c.Ref)
}

// BranchCandidate builds a candidate for a branch tip.
func BranchCandidate(repo, sha string) Candidate {
	return Candidate{Label: BranchLabel, Repo: repo, Ref: sha, SHA: sha}
}

// PullRequestCandidate builds a candidate for an open pull request head.
func PullRequestCandidate(pr forge.PullRequest) Candidate {
	return Candidate{
		Label: strconv.Itoa(pr.Number),
		Repo:  pr.HeadOwner,
		Ref:   pr.HeadSHA,
		SHA:   pr.HeadSHA,
	}
}

// LookupFunc returns the status snapshot for a commit.
type LookupFunc func(ctx context.Context, sha string) (status.Snapshot, error)

// NeedsBuild reports whether a context state means the commit still needs a
// build. A pending status does not prove a build is running.
func NeedsBuild(state status.State, ok bool) bool {
	return !ok || state == status.StatePending
}

// Select returns the candidates whose state for statusContext is absent or pending,
// in input order. Lookups run concurrently, at most limit at a time (limit <= 0
// means DefaultConcurrency). The first lookup error cancels the rest.
func Select(ctx context.Context, candidates []Candidate, statusContext string, lookup LookupFunc, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	need := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range candidates {
		g.Go(func() error {
			snap, err := lookup(gctx, c.SHA)
			if err != nil {
				return fmt.Errorf("lookup status for %s: %w", c, err)
			}
			need[i] = NeedsBuild(snap.Read(statusContext))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	for i, c := range candidates {
		if need[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Format joins candidate tokens with single spaces.
func Format(candidates []Candidate) string {
	tokens := make([]string, len(candidates))
	for i, c := range candidates {
		tokens[i] = c.String()
	}
	return strings.Join(tokens, " ")
}
