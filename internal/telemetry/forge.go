package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
)

const tracerName = "github.com/lucasnoah/cibot/internal/forge"

// tracedForge wraps every forge call in a client span.
type tracedForge struct {
	next   forge.Forge
	tracer trace.Tracer
	kind   string
}

// WrapForge returns f with tracing. A nil tp uses the global provider.
func WrapForge(f forge.Forge, kind string, tp trace.TracerProvider) forge.Forge {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &tracedForge{next: f, tracer: tp.Tracer(tracerName), kind: kind}
}

func (t *tracedForge) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("forge.kind", t.kind))
	return t.tracer.Start(ctx, "forge."+name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedForge) IssueText(ctx context.Context, number int) (string, error) {
	ctx, span := t.start(ctx, "IssueText", attribute.Int("issue", number))
	body, err := t.next.IssueText(ctx, number)
	end(span, err)
	return body, err
}

func (t *tracedForge) Comments(ctx context.Context, number int) ([]string, error) {
	ctx, span := t.start(ctx, "Comments", attribute.Int("issue", number))
	comments, err := t.next.Comments(ctx, number)
	span.SetAttributes(attribute.Int("comments", len(comments)))
	end(span, err)
	return comments, err
}

func (t *tracedForge) Statuses(ctx context.Context, sha string) ([]status.Record, error) {
	ctx, span := t.start(ctx, "Statuses", attribute.String("sha", sha))
	records, err := t.next.Statuses(ctx, sha)
	span.SetAttributes(attribute.Int("records", len(records)))
	end(span, err)
	return records, err
}

func (t *tracedForge) CreateStatus(ctx context.Context, opts forge.StatusOpts) error {
	ctx, span := t.start(ctx, "CreateStatus",
		attribute.String("sha", opts.SHA),
		attribute.String("status.context", opts.Context),
		attribute.String("status.state", string(opts.State)),
	)
	err := t.next.CreateStatus(ctx, opts)
	end(span, err)
	return err
}

func (t *tracedForge) OpenPullRequests(ctx context.Context) ([]forge.PullRequest, error) {
	ctx, span := t.start(ctx, "OpenPullRequests")
	prs, err := t.next.OpenPullRequests(ctx)
	span.SetAttributes(attribute.Int("pull_requests", len(prs)))
	end(span, err)
	return prs, err
}

func (t *tracedForge) BranchTip(ctx context.Context, branch string) (string, error) {
	ctx, span := t.start(ctx, "BranchTip", attribute.String("branch", branch))
	sha, err := t.next.BranchTip(ctx, branch)
	end(span, err)
	return sha, err
}

func (t *tracedForge) CommitTime(ctx context.Context, sha string) (time.Time, error) {
	ctx, span := t.start(ctx, "CommitTime", attribute.String("sha", sha))
	ts, err := t.next.CommitTime(ctx, sha)
	end(span, err)
	return ts, err
}
