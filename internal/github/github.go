package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
)

// CmdRunner provides command execution. Interface for testing.
type CmdRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs gh commands via exec.
type ExecRunner struct {
	// Token, when set, is passed to gh as GH_TOKEN.
	Token string
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if r.Token != "" {
		cmd.Env = append(os.Environ(), "GH_TOKEN="+r.Token)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		return strings.TrimSpace(stdout.String()), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client implements forge.Forge for one GitHub repository through the gh CLI.
type Client struct {
	cmd   CmdRunner
	owner string
	repo  string
}

// NewClient creates a GitHub client for owner/repo.
func NewClient(cmd CmdRunner, owner, repo string) *Client {
	return &Client{cmd: cmd, owner: owner, repo: repo}
}

var _ forge.Forge = (*Client)(nil)

func (c *Client) path(format string, args ...any) string {
	return fmt.Sprintf("repos/%s/%s/", c.owner, c.repo) + fmt.Sprintf(format, args...)
}

type issueJSON struct {
	Number int     `json:"number"`
	Body   *string `json:"body"`
}

type commentJSON struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type statusJSON struct {
	Context   string    `json:"context"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pullJSON struct {
	Number int `json:"number"`
	Head   struct {
		SHA   string `json:"sha"`
		Label string `json:"label"`
		Ref   string `json:"ref"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"head"`
}

// IssueText fetches the issue or pull request body.
func (c *Client) IssueText(ctx context.Context, number int) (string, error) {
	if err := forge.ValidateIssueNumber(number); err != nil {
		return "", err
	}
	out, err := c.cmd.Run(ctx, "api", c.path("issues/%d", number))
	if err != nil {
		return "", classify(fmt.Sprintf("get issue %d", number), err)
	}
	var issue issueJSON
	if err := json.Unmarshal([]byte(out), &issue); err != nil {
		return "", fmt.Errorf("parse issue JSON: %w", err)
	}
	if issue.Body == nil {
		return "", nil
	}
	return *issue.Body, nil
}

// Comments fetches all comment bodies, oldest first.
func (c *Client) Comments(ctx context.Context, number int) ([]string, error) {
	if err := forge.ValidateIssueNumber(number); err != nil {
		return nil, err
	}
	out, err := c.cmd.Run(ctx, "api", "--paginate", c.path("issues/%d/comments?per_page=100", number))
	if err != nil {
		return nil, classify(fmt.Sprintf("list comments %d", number), err)
	}
	comments, err := decodePages[commentJSON](out)
	if err != nil {
		return nil, fmt.Errorf("parse comments JSON: %w", err)
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	bodies := make([]string, len(comments))
	for i, cm := range comments {
		bodies[i] = cm.Body
	}
	return bodies, nil
}

// Statuses fetches every status ever posted on sha. States outside the known
// four are dropped.
func (c *Client) Statuses(ctx context.Context, sha string) ([]status.Record, error) {
	if err := validateRef(sha); err != nil {
		return nil, err
	}
	out, err := c.cmd.Run(ctx, "api", "--paginate", c.path("commits/%s/statuses?per_page=100", sha))
	if err != nil {
		return nil, classify(fmt.Sprintf("list statuses %s", sha), err)
	}
	raw, err := decodePages[statusJSON](out)
	if err != nil {
		return nil, fmt.Errorf("parse statuses JSON: %w", err)
	}
	records := make([]status.Record, 0, len(raw))
	for _, s := range raw {
		st, err := status.ParseState(s.State)
		if err != nil {
			continue
		}
		records = append(records, status.Record{Context: s.Context, State: st, UpdatedAt: s.UpdatedAt})
	}
	return records, nil
}

// CreateStatus posts a new commit status.
func (c *Client) CreateStatus(ctx context.Context, opts forge.StatusOpts) error {
	if err := validateRef(opts.SHA); err != nil {
		return err
	}
	if !opts.State.Valid() {
		return &status.InvalidStateError{Value: string(opts.State)}
	}
	args := []string{
		"api", "-X", "POST", c.path("statuses/%s", opts.SHA),
		"-f", "state=" + string(opts.State),
		"-f", "context=" + opts.Context,
		"-f", "description=" + opts.Description,
	}
	if opts.TargetURL != "" {
		args = append(args, "-f", "target_url="+opts.TargetURL)
	}
	if _, err := c.cmd.Run(ctx, args...); err != nil {
		return classify(fmt.Sprintf("create status %s", opts.SHA), err)
	}
	return nil
}

// OpenPullRequests lists open pull requests, most recently updated first.
func (c *Client) OpenPullRequests(ctx context.Context) ([]forge.PullRequest, error) {
	out, err := c.cmd.Run(ctx, "api", "--paginate", c.path("pulls?state=open&sort=updated&direction=desc&per_page=100"))
	if err != nil {
		return nil, classify("list pull requests", err)
	}
	raw, err := decodePages[pullJSON](out)
	if err != nil {
		return nil, fmt.Errorf("parse pull requests JSON: %w", err)
	}
	prs := make([]forge.PullRequest, len(raw))
	for i, p := range raw {
		prs[i] = forge.PullRequest{
			Number:    p.Number,
			HeadSHA:   p.Head.SHA,
			HeadLabel: p.Head.Label,
			HeadRef:   p.Head.Ref,
			HeadOwner: p.Head.User.Login,
		}
	}
	return prs, nil
}

// BranchTip returns the commit SHA at the tip of branch.
func (c *Client) BranchTip(ctx context.Context, branch string) (string, error) {
	if err := validateRef(branch); err != nil {
		return "", err
	}
	out, err := c.cmd.Run(ctx, "api", c.path("branches/%s", url.PathEscape(branch)))
	if err != nil {
		return "", classify(fmt.Sprintf("get branch %s", branch), err)
	}
	var b struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		return "", fmt.Errorf("parse branch JSON: %w", err)
	}
	if b.Commit.SHA == "" {
		return "", fmt.Errorf("branch %s has no commit", branch)
	}
	return b.Commit.SHA, nil
}

// CommitTime returns the committer timestamp of sha.
func (c *Client) CommitTime(ctx context.Context, sha string) (time.Time, error) {
	if err := validateRef(sha); err != nil {
		return time.Time{}, err
	}
	out, err := c.cmd.Run(ctx, "api", c.path("commits/%s", sha))
	if err != nil {
		return time.Time{}, classify(fmt.Sprintf("get commit %s", sha), err)
	}
	var cm struct {
		Commit struct {
			Committer struct {
				Date time.Time `json:"date"`
			} `json:"committer"`
		} `json:"commit"`
	}
	if err := json.Unmarshal([]byte(out), &cm); err != nil {
		return time.Time{}, fmt.Errorf("parse commit JSON: %w", err)
	}
	return cm.Commit.Committer.Date.UTC(), nil
}

// decodePages decodes gh --paginate output, which is one JSON array per page
// written back to back.
func decodePages[T any](out string) ([]T, error) {
	dec := json.NewDecoder(strings.NewReader(out))
	var all []T
	for {
		var page []T
		err := dec.Decode(&page)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
}

// validateRef rejects refs that gh would parse as flags.
func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("empty ref")
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("invalid ref %q: must not start with -", ref)
	}
	return nil
}

// classify maps gh failures onto the forge error types.
func classify(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "HTTP 404"):
		return &forge.NotFoundError{Op: op, Err: err}
	case strings.Contains(msg, "HTTP 401"), strings.Contains(msg, "HTTP 403"),
		strings.Contains(msg, "gh auth login"):
		return &forge.AuthorizationError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
