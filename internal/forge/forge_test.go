package forge_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/forge/forgetest"
)

func TestDiscussion(t *testing.T) {
	f := &forgetest.Fake{
		Issues: map[int]string{1541: "+TESTS:clients.fdsn"},
		Notes:  map[int][]string{1541: {"first", "+DOCS"}},
	}
	got, err := forge.Discussion(context.Background(), f, 1541)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"+TESTS:clients.fdsn", "first", "+DOCS"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Discussion mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscussion_MissingIssue(t *testing.T) {
	_, err := forge.Discussion(context.Background(), &forgetest.Fake{}, 7)
	var nf *forge.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !strings.Contains(err.Error(), "fetch issue 7") {
		t.Errorf("error lacks context: %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := fmt.Errorf("HTTP 403")
	err := fmt.Errorf("wrapped: %w", &forge.AuthorizationError{Op: "create status", Err: cause})
	var ae *forge.AuthorizationError
	if !errors.As(err, &ae) || ae.Op != "create status" {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("AuthorizationError should unwrap to its cause")
	}
	if got := ae.Error(); got != "create status: not authorized: HTTP 403" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidateIssueNumber(t *testing.T) {
	for _, n := range []int{0, -3} {
		if err := forge.ValidateIssueNumber(n); err == nil {
			t.Errorf("ValidateIssueNumber(%d) = nil, want error", n)
		}
	}
	if err := forge.ValidateIssueNumber(1); err != nil {
		t.Errorf("ValidateIssueNumber(1) = %v", err)
	}
}
