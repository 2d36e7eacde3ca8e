package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/cibot/internal/db"
	"github.com/lucasnoah/cibot/internal/directive"
	"github.com/lucasnoah/cibot/internal/docbuild"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/targets"
)

// DocBuildRequests returns the open pull requests whose discussion asks for a
// docs build, in forge order.
func (e *Engine) DocBuildRequests(ctx context.Context) ([]forge.PullRequest, error) {
	prs, err := e.forge.OpenPullRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open pull requests: %w", err)
	}

	limit := e.opts.Concurrency
	if limit <= 0 {
		limit = targets.DefaultConcurrency
	}
	wants := make([]bool, len(prs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pr := range prs {
		g.Go(func() error {
			blocks, err := forge.Discussion(gctx, e.forge, pr.Number)
			if err != nil {
				return err
			}
			wants[i] = directive.DocsRequested(blocks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []forge.PullRequest
	for i, pr := range prs {
		if wants[i] {
			out = append(out, pr)
		}
	}
	return out, nil
}

// DocAction reports what QueueDocBuilds decided for one pull request.
type DocAction struct {
	Number     int       `json:"number"`
	SHA        string    `json:"sha"`
	CommitTime time.Time `json:"commit_time"`
	Action     string    `json:"action"` // queued or current
}

// QueueDocBuilds records the head commit time of every docs-requesting pull
// request and queues a build for those whose last build predates it.
func (e *Engine) QueueDocBuilds(ctx context.Context) ([]DocAction, error) {
	if e.docs == nil {
		return nil, ErrNoDocStore
	}
	prs, err := e.DocBuildRequests(ctx)
	if err != nil {
		return nil, err
	}

	actions := make([]DocAction, 0, len(prs))
	for _, pr := range prs {
		committed, err := e.forge.CommitTime(ctx, pr.HeadSHA)
		if err != nil {
			return actions, wrapIssue("get head commit time", pr.Number, err)
		}
		marker, err := e.docs.Touch(ctx, pr.Number, pr.HeadOwner, pr.HeadRef, committed)
		if err != nil {
			return actions, wrapIssue("touch docs marker", pr.Number, err)
		}

		action := db.DocsActionCurrent
		if docbuild.IsStale(marker, committed) {
			if err := e.docs.Queue(ctx, pr.Number); err != nil {
				return actions, wrapIssue("queue docs build", pr.Number, err)
			}
			action = db.DocsActionQueued
		}

		e.log.Info("docs build checked",
			zap.Int("issue", pr.Number),
			zap.String("sha", pr.HeadSHA),
			zap.Time("commit_time", committed),
			zap.String("action", action),
		)
		e.auditDocs(db.DocsEvent{Issue: pr.Number, SHA: pr.HeadSHA, Action: action})
		actions = append(actions, DocAction{Number: pr.Number, SHA: pr.HeadSHA, CommitTime: committed, Action: action})
	}
	return actions, nil
}

// MarkDocsBuilt records a finished docs build for issue at t.
func (e *Engine) MarkDocsBuilt(ctx context.Context, issue int, t time.Time) error {
	if e.docs == nil {
		return ErrNoDocStore
	}
	if err := forge.ValidateIssueNumber(issue); err != nil {
		return err
	}
	if err := e.docs.MarkDone(ctx, issue, t); err != nil {
		return wrapIssue("mark docs built", issue, err)
	}
	e.log.Info("docs build done", zap.Int("issue", issue), zap.Time("done_at", t))
	e.auditDocs(db.DocsEvent{Issue: issue, Action: db.DocsActionDone})
	return nil
}

// DocsMarker returns the stored marker for issue, or nil when none exists.
func (e *Engine) DocsMarker(ctx context.Context, issue int) (*docbuild.Marker, error) {
	if e.docs == nil {
		return nil, ErrNoDocStore
	}
	m, err := e.docs.Load(ctx, issue)
	if err != nil {
		return nil, wrapIssue("load docs marker", issue, err)
	}
	return m, nil
}
