package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
)

const perPage = 100

// Client implements forge.Forge for one GitLab project. Issue numbers are
// merge request IIDs.
type Client struct {
	api     *gitlab.Client
	project string
}

var _ forge.Forge = (*Client)(nil)

// NewClient builds a client for project (numeric ID or full path). An empty
// baseURL means gitlab.com.
func NewClient(token, baseURL, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("gitlab project is required")
	}
	var (
		api *gitlab.Client
		err error
	)
	if baseURL == "" {
		api, err = gitlab.NewClient(token)
	} else {
		api, err = gitlab.NewClient(token, gitlab.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/api/v4"))
	}
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	return &Client{api: api, project: project}, nil
}

func (c *Client) IssueText(ctx context.Context, number int) (string, error) {
	if err := forge.ValidateIssueNumber(number); err != nil {
		return "", err
	}
	mr, resp, err := c.api.MergeRequests.GetMergeRequest(c.project, int64(number), nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", classify(fmt.Sprintf("get merge request %d", number), resp, err)
	}
	return mr.Description, nil
}

// Comments returns non-system note bodies across all discussions, oldest first.
func (c *Client) Comments(ctx context.Context, number int) ([]string, error) {
	if err := forge.ValidateIssueNumber(number); err != nil {
		return nil, err
	}
	type note struct {
		body string
		at   time.Time
	}
	var notes []note
	opts := &gitlab.ListMergeRequestDiscussionsOptions{ListOptions: gitlab.ListOptions{Page: 1, PerPage: perPage}}
	for {
		page, resp, err := c.api.Discussions.ListMergeRequestDiscussions(c.project, int64(number), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(fmt.Sprintf("list discussions %d", number), resp, err)
		}
		for _, d := range page {
			if d == nil {
				continue
			}
			for _, n := range d.Notes {
				if n == nil || n.System {
					continue
				}
				var at time.Time
				if n.CreatedAt != nil {
					at = *n.CreatedAt
				}
				notes = append(notes, note{body: n.Body, at: at})
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].at.Before(notes[j].at) })
	bodies := make([]string, len(notes))
	for i, n := range notes {
		bodies[i] = n.body
	}
	return bodies, nil
}

func (c *Client) Statuses(ctx context.Context, sha string) ([]status.Record, error) {
	opts := &gitlab.GetCommitStatusesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: perPage},
		All:         gitlab.Ptr(true),
	}
	var records []status.Record
	for {
		page, resp, err := c.api.Commits.GetCommitStatuses(c.project, sha, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(fmt.Sprintf("list statuses %s", sha), resp, err)
		}
		for _, s := range page {
			if s == nil {
				continue
			}
			st, ok := LocalState(s.Status)
			if !ok {
				continue
			}
			records = append(records, status.Record{Context: s.Name, State: st, UpdatedAt: updatedAt(s)})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return records, nil
}

func (c *Client) CreateStatus(ctx context.Context, opts forge.StatusOpts) error {
	if !opts.State.Valid() {
		return &status.InvalidStateError{Value: string(opts.State)}
	}
	set := &gitlab.SetCommitStatusOptions{
		State:       RemoteState(opts.State),
		Name:        gitlab.Ptr(opts.Context),
		Description: gitlab.Ptr(opts.Description),
	}
	if opts.TargetURL != "" {
		set.TargetURL = gitlab.Ptr(opts.TargetURL)
	}
	_, resp, err := c.api.Commits.SetCommitStatus(c.project, opts.SHA, set, gitlab.WithContext(ctx))
	if err != nil {
		return classify(fmt.Sprintf("set status %s", opts.SHA), resp, err)
	}
	return nil
}

// OpenPullRequests lists open merge requests, most recently updated first.
func (c *Client) OpenPullRequests(ctx context.Context) ([]forge.PullRequest, error) {
	opts := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: perPage},
		State:       gitlab.Ptr("opened"),
		OrderBy:     gitlab.Ptr("updated_at"),
		Sort:        gitlab.Ptr("desc"),
	}
	var prs []forge.PullRequest
	for {
		page, resp, err := c.api.MergeRequests.ListProjectMergeRequests(c.project, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify("list merge requests", resp, err)
		}
		for _, mr := range page {
			if mr == nil {
				continue
			}
			owner := ""
			if mr.Author != nil {
				owner = mr.Author.Username
			}
			prs = append(prs, forge.PullRequest{
				Number:    int(mr.IID),
				HeadSHA:   mr.SHA,
				HeadLabel: owner + ":" + mr.SourceBranch,
				HeadRef:   mr.SourceBranch,
				HeadOwner: owner,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return prs, nil
}

func (c *Client) BranchTip(ctx context.Context, branch string) (string, error) {
	b, resp, err := c.api.Branches.GetBranch(c.project, branch, gitlab.WithContext(ctx))
	if err != nil {
		return "", classify(fmt.Sprintf("get branch %s", branch), resp, err)
	}
	if b.Commit == nil || b.Commit.ID == "" {
		return "", fmt.Errorf("branch %s has no commit", branch)
	}
	return b.Commit.ID, nil
}

func (c *Client) CommitTime(ctx context.Context, sha string) (time.Time, error) {
	cm, resp, err := c.api.Commits.GetCommit(c.project, sha, nil, gitlab.WithContext(ctx))
	if err != nil {
		return time.Time{}, classify(fmt.Sprintf("get commit %s", sha), resp, err)
	}
	if cm.CommittedDate == nil {
		return time.Time{}, fmt.Errorf("commit %s has no committed date", sha)
	}
	return cm.CommittedDate.UTC(), nil
}

// LocalState maps a GitLab job status onto the four commit states. Unknown
// values report false.
func LocalState(s string) (status.State, bool) {
	switch s {
	case "running", "created", "pending", "waiting_for_resource", "preparing", "scheduled", "manual":
		return status.StatePending, true
	case "success":
		return status.StateSuccess, true
	case "failed":
		return status.StateFailure, true
	case "canceled", "skipped":
		return status.StateError, true
	default:
		return "", false
	}
}

// RemoteState maps a commit state onto the value GitLab accepts when setting
// a status.
func RemoteState(s status.State) gitlab.BuildStateValue {
	switch s {
	case status.StateSuccess:
		return gitlab.Success
	case status.StateFailure:
		return gitlab.Failed
	case status.StateError:
		return gitlab.Canceled
	default:
		return gitlab.Pending
	}
}

func updatedAt(s *gitlab.CommitStatus) time.Time {
	for _, t := range []*time.Time{s.FinishedAt, s.StartedAt, s.CreatedAt} {
		if t != nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func classify(op string, resp *gitlab.Response, err error) error {
	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return &forge.NotFoundError{Op: op, Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &forge.AuthorizationError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
