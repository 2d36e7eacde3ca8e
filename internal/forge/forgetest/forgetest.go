// Package forgetest provides an in-memory forge.Forge for tests.
package forgetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
)

// Fake is a concurrency-safe in-memory forge. Zero value is ready to use.
type Fake struct {
	mu sync.Mutex

	Issues   map[int]string
	Notes    map[int][]string
	Records  map[string][]status.Record
	Pulls    []forge.PullRequest
	Branches map[string]string
	Commits  map[string]time.Time

	// Err, when set, is returned by every call.
	Err error
	// Now stamps created statuses; defaults to time.Now.
	Now func() time.Time

	Created []forge.StatusOpts
	Calls   []string
}

var _ forge.Forge = (*Fake)(nil)

func (f *Fake) record(call string) error {
	f.Calls = append(f.Calls, call)
	return f.Err
}

func (f *Fake) IssueText(_ context.Context, number int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("IssueText %d", number)); err != nil {
		return "", err
	}
	body, ok := f.Issues[number]
	if !ok {
		return "", &forge.NotFoundError{Op: fmt.Sprintf("get issue %d", number), Err: fmt.Errorf("no such issue")}
	}
	return body, nil
}

func (f *Fake) Comments(_ context.Context, number int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("Comments %d", number)); err != nil {
		return nil, err
	}
	return append([]string(nil), f.Notes[number]...), nil
}

func (f *Fake) Statuses(_ context.Context, sha string) ([]status.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Statuses " + sha); err != nil {
		return nil, err
	}
	return append([]status.Record(nil), f.Records[sha]...), nil
}

// CreateStatus appends a record, so later Statuses calls observe the write.
func (f *Fake) CreateStatus(_ context.Context, opts forge.StatusOpts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateStatus " + opts.SHA); err != nil {
		return err
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	if f.Records == nil {
		f.Records = make(map[string][]status.Record)
	}
	f.Records[opts.SHA] = append(f.Records[opts.SHA], status.Record{Context: opts.Context, State: opts.State, UpdatedAt: now()})
	f.Created = append(f.Created, opts)
	return nil
}

func (f *Fake) OpenPullRequests(_ context.Context) ([]forge.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("OpenPullRequests"); err != nil {
		return nil, err
	}
	return append([]forge.PullRequest(nil), f.Pulls...), nil
}

func (f *Fake) BranchTip(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("BranchTip " + branch); err != nil {
		return "", err
	}
	sha, ok := f.Branches[branch]
	if !ok {
		return "", &forge.NotFoundError{Op: "get branch " + branch, Err: fmt.Errorf("no such branch")}
	}
	return sha, nil
}

func (f *Fake) CommitTime(_ context.Context, sha string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CommitTime " + sha); err != nil {
		return time.Time{}, err
	}
	t, ok := f.Commits[sha]
	if !ok {
		return time.Time{}, &forge.NotFoundError{Op: "get commit " + sha, Err: fmt.Errorf("no such commit")}
	}
	return t, nil
}

// CreatedCount returns how many statuses were written.
func (f *Fake) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}
