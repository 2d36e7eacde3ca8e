package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/cibot/internal/db"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
	"github.com/lucasnoah/cibot/internal/targets"
)

// Snapshot fetches and combines every status on sha.
func (e *Engine) Snapshot(ctx context.Context, sha string) (status.Snapshot, error) {
	records, err := e.forge.Statuses(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("fetch statuses for %s: %w", sha, err)
	}
	return status.Combine(records), nil
}

// CommitStatus returns the state of one context on sha, or the combined state
// when statusContext is empty. ok is false when there is no state.
func (e *Engine) CommitStatus(ctx context.Context, sha, statusContext string) (state status.State, ok bool, err error) {
	snap, err := e.Snapshot(ctx, sha)
	if err != nil {
		return "", false, err
	}
	state, ok = snap.Read(statusContext)
	return state, ok, nil
}

// SetStatusOpts is a proposed status write plus its guard options.
type SetStatusOpts struct {
	forge.StatusOpts
	status.WriteOpts
}

// SetCommitStatus validates the proposal, consults the write guard and writes
// the status when allowed. Every decision is logged and audited.
func (e *Engine) SetCommitStatus(ctx context.Context, opts SetStatusOpts) (status.Decision, error) {
	if !opts.State.Valid() {
		return status.Decision{}, &status.InvalidStateError{Value: string(opts.State)}
	}
	if opts.Context == "" {
		return status.Decision{}, fmt.Errorf("status context is required")
	}

	var current status.State
	if opts.NeedsLookup() {
		st, ok, err := e.CommitStatus(ctx, opts.SHA, opts.Context)
		if err != nil {
			return status.Decision{}, err
		}
		if ok {
			current = st
		}
	}

	d, err := status.Decide(current, opts.State, opts.WriteOpts)
	if err != nil {
		return status.Decision{}, err
	}

	fields := []zap.Field{
		zap.String("sha", opts.SHA),
		zap.String("context", opts.Context),
		zap.String("state", string(opts.State)),
	}
	if !d.Write {
		e.log.Info("skipped status write", append(fields, zap.String("reason", d.Reason))...)
		e.auditStatus(db.StatusWrite{SHA: opts.SHA, Context: opts.Context, State: string(opts.State), Reason: d.Reason, Description: opts.Description})
		return d, nil
	}

	if err := e.forge.CreateStatus(ctx, opts.StatusOpts); err != nil {
		return status.Decision{}, fmt.Errorf("create status on %s: %w", opts.SHA, err)
	}
	e.log.Info("wrote status", fields...)
	e.auditStatus(db.StatusWrite{SHA: opts.SHA, Context: opts.Context, State: string(opts.State), Written: true, Description: opts.Description})
	return d, nil
}

// PendingResult reports what MarkOpenPullRequestsPending did for one pull request.
type PendingResult struct {
	Number  int    `json:"number"`
	SHA     string `json:"sha"`
	Written bool   `json:"written"`
	Reason  string `json:"reason,omitempty"`
}

// MarkOpenPullRequestsPending sets a pending status on every open pull request
// head that has no status for statusContext yet.
func (e *Engine) MarkOpenPullRequestsPending(ctx context.Context, statusContext, description string) ([]PendingResult, error) {
	prs, err := e.forge.OpenPullRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open pull requests: %w", err)
	}
	results := make([]PendingResult, 0, len(prs))
	for _, pr := range prs {
		d, err := e.SetCommitStatus(ctx, SetStatusOpts{
			StatusOpts: forge.StatusOpts{
				SHA:         pr.HeadSHA,
				State:       status.StatePending,
				Context:     statusContext,
				Description: description,
			},
			WriteOpts: status.WriteOpts{OnlyWhenNoStatusYet: true},
		})
		if err != nil {
			return results, wrapIssue("mark pending", pr.Number, err)
		}
		results = append(results, PendingResult{Number: pr.Number, SHA: pr.HeadSHA, Written: d.Write, Reason: d.Reason})
	}
	return results, nil
}

// BuildCandidates lists branch tips (in branch order) followed by open pull
// request heads (in forge order).
func (e *Engine) BuildCandidates(ctx context.Context, branches []string, includePRs bool) ([]targets.Candidate, error) {
	var candidates []targets.Candidate
	for _, b := range branches {
		sha, err := e.forge.BranchTip(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("resolve branch %s: %w", b, err)
		}
		candidates = append(candidates, targets.BranchCandidate(e.opts.Repo, sha))
	}
	if includePRs {
		prs, err := e.forge.OpenPullRequests(ctx)
		if err != nil {
			return nil, fmt.Errorf("list open pull requests: %w", err)
		}
		for _, pr := range prs {
			candidates = append(candidates, targets.PullRequestCandidate(pr))
		}
	}
	return candidates, nil
}

// SelectBuildTargets returns the candidates that still need a build for statusContext.
func (e *Engine) SelectBuildTargets(ctx context.Context, statusContext string, branches []string, includePRs bool) ([]targets.Candidate, error) {
	if len(branches) == 0 && !includePRs {
		return nil, nil
	}
	candidates, err := e.BuildCandidates(ctx, branches, includePRs)
	if err != nil {
		return nil, err
	}
	selected, err := targets.Select(ctx, candidates, statusContext, e.Snapshot, e.opts.Concurrency)
	if err != nil {
		return nil, err
	}
	e.log.Debug("selected build targets",
		zap.String("context", statusContext), zap.Int("candidates", len(candidates)), zap.Int("selected", len(selected)))
	return selected, nil
}

// BuildTargets renders SelectBuildTargets as the space separated token string
// the CI script consumes.
func (e *Engine) BuildTargets(ctx context.Context, statusContext string, branches []string, includePRs bool) (string, error) {
	selected, err := e.SelectBuildTargets(ctx, statusContext, branches, includePRs)
	if err != nil {
		return "", err
	}
	return targets.Format(selected), nil
}
