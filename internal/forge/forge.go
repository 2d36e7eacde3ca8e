package forge

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasnoah/cibot/internal/status"
)

// Forge is the code-forge collaborator the engine consumes. Implementations
// live in internal/github and internal/gitlab.
type Forge interface {
	IssueText(ctx context.Context, number int) (string, error)
	// Comments returns comment bodies in creation order.
	Comments(ctx context.Context, number int) ([]string, error)
	Statuses(ctx context.Context, sha string) ([]status.Record, error)
	CreateStatus(ctx context.Context, opts StatusOpts) error
	OpenPullRequests(ctx context.Context) ([]PullRequest, error)
	BranchTip(ctx context.Context, branch string) (string, error)
	CommitTime(ctx context.Context, sha string) (time.Time, error)
}

// StatusOpts holds the fields of a new commit status.
type StatusOpts struct {
	SHA         string
	State       status.State
	Context     string
	Description string
	TargetURL   string
}

// PullRequest is an open pull request head.
type PullRequest struct {
	Number    int    `json:"number"`
	HeadSHA   string `json:"head_sha"`
	HeadLabel string `json:"head_label"` // owner:ref
	HeadRef   string `json:"head_ref"`
	HeadOwner string `json:"head_owner"`
}

// AuthorizationError means credentials were missing or rejected.
type AuthorizationError struct {
	Op  string
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: not authorized: %v", e.Op, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// NotFoundError means the repository, issue, branch or commit does not exist.
type NotFoundError struct {
	Op  string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found: %v", e.Op, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Discussion returns the issue body followed by its comments, the text source
// directives are scanned from.
func Discussion(ctx context.Context, f Forge, number int) ([]string, error) {
	body, err := f.IssueText(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %d: %w", number, err)
	}
	comments, err := f.Comments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for issue %d: %w", number, err)
	}
	return append([]string{body}, comments...), nil
}

// ValidateIssueNumber checks that an issue number is positive.
func ValidateIssueNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid issue number %d: must be positive", n)
	}
	return nil
}
