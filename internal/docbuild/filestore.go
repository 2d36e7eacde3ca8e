package docbuild

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileStore keeps markers as plain files in one directory, the layout the
// docs build script polls:
//
//	<dir>/<issue>       fork and branch on two lines; mtime = newest request
//	<dir>/<issue>.todo  present while a build is queued
//	<dir>/<issue>.done  mtime = when the last build finished
type FileStore struct {
	dir         string
	lockTimeout time.Duration
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, lockTimeout: 10 * time.Second}
}

// DefaultFileStore returns a FileStore at ~/.cibot/pull_request_docs, creating the directory if needed.
func DefaultFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".cibot", "pull_request_docs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return NewFileStore(dir), nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) stubPath(issue int) string {
	return filepath.Join(s.dir, strconv.Itoa(issue))
}

func (s *FileStore) todoPath(issue int) string { return s.stubPath(issue) + ".todo" }
func (s *FileStore) donePath(issue int) string { return s.stubPath(issue) + ".done" }
func (s *FileStore) lockPath(issue int) string { return s.stubPath(issue) + ".lock" }

// Load reads the marker files for issue.
func (s *FileStore) Load(_ context.Context, issue int) (*Marker, error) {
	info, err := os.Stat(s.stubPath(issue))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat marker %d: %w", issue, err)
	}

	m := &Marker{Issue: issue, RequestedAt: info.ModTime().UTC()}
	if m.Fork, m.Branch, err = readStub(s.stubPath(issue)); err != nil {
		return nil, err
	}
	if done, err := os.Stat(s.donePath(issue)); err == nil {
		m.DoneAt = done.ModTime().UTC()
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat done marker %d: %w", issue, err)
	}
	if _, err := os.Stat(s.todoPath(issue)); err == nil {
		m.Queued = true
	}
	return m, nil
}

// Touch creates the stub file if missing and moves its mtime forward to t.
func (s *FileStore) Touch(ctx context.Context, issue int, fork, branch string, t time.Time) (*Marker, error) {
	unlock, err := s.lock(issue)
	if err != nil {
		return nil, err
	}
	defer unlock()

	path := s.stubPath(issue)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		content := fmt.Sprintf("%s\n%s\n", fork, branch)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write marker %d: %w", issue, err)
		}
		// A fresh stub must not look newer than the request it records.
		if err := os.Chtimes(path, t, t); err != nil {
			return nil, fmt.Errorf("set marker time %d: %w", issue, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat marker %d: %w", issue, err)
	} else if err := s.raise(path, t); err != nil {
		return nil, fmt.Errorf("set marker time %d: %w", issue, err)
	}

	return s.Load(ctx, issue)
}

// Queue touches the .todo file.
func (s *FileStore) Queue(_ context.Context, issue int) error {
	f, err := os.OpenFile(s.todoPath(issue), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("queue docs build %d: %w", issue, err)
	}
	return f.Close()
}

// MarkDone writes the .done file with mtime t and removes the .todo file.
func (s *FileStore) MarkDone(_ context.Context, issue int, t time.Time) error {
	unlock, err := s.lock(issue)
	if err != nil {
		return err
	}
	defer unlock()

	path := s.donePath(issue)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("write done marker %d: %w", issue, err)
		}
		if err := os.Chtimes(path, t, t); err != nil {
			return fmt.Errorf("set done time %d: %w", issue, err)
		}
	} else if err != nil {
		return fmt.Errorf("stat done marker %d: %w", issue, err)
	} else if err := s.raise(path, t); err != nil {
		return fmt.Errorf("set done time %d: %w", issue, err)
	}

	if err := os.Remove(s.todoPath(issue)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear todo marker %d: %w", issue, err)
	}
	return nil
}

// raise sets path's times to t only if t is newer than its current mtime.
func (s *FileStore) raise(path string, t time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !t.After(info.ModTime()) {
		return nil
	}
	return os.Chtimes(path, t, t)
}

// lock takes a per-issue lock file so concurrent runs serialize their
// read-compare-write of marker times. Locks older than the timeout are
// treated as abandoned.
func (s *FileStore) lock(issue int) (func(), error) {
	path := s.lockPath(issue)
	deadline := time.Now().Add(s.lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock marker %d: %w", issue, err)
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > s.lockTimeout {
			os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock marker %d: timed out waiting for %s", issue, path)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func readStub(path string) (fork, branch string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open marker: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return "", "", fmt.Errorf("read marker: %w", err)
	}
	if len(lines) > 0 {
		fork = lines[0]
	}
	if len(lines) > 1 {
		branch = lines[1]
	}
	return fork, branch, nil
}
