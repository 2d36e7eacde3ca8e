package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values from one
// invocation do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"make-config", "read-config-value", "module-list", "status",
		"build-targets", "docs", "audit", "config", "db", "serve", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestStatusSubcommands(t *testing.T) {
	subcmds := []string{"get", "set", "mark-pending"}
	for _, sub := range subcmds {
		out, err := executeCommand("status", sub, "--help")
		if err != nil {
			t.Errorf("status %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("status %s --help produced no output", sub)
		}
	}
}

func TestDocsSubcommands(t *testing.T) {
	subcmds := []string{"requests", "queue", "done", "show"}
	for _, sub := range subcmds {
		out, err := executeCommand("docs", sub, "--help")
		if err != nil {
			t.Errorf("docs %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("docs %s --help produced no output", sub)
		}
	}
}

func TestAuditSubcommands(t *testing.T) {
	subcmds := []string{"status", "docs"}
	for _, sub := range subcmds {
		out, err := executeCommand("audit", sub, "--help")
		if err != nil {
			t.Errorf("audit %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("audit %s --help produced no output", sub)
		}
	}
}

func TestStatusSetHelp_GuardFlagsPresent(t *testing.T) {
	out, err := executeCommand("status", "set", "--help")
	if err != nil {
		t.Fatalf("status set --help: %v", err)
	}
	for _, flag := range []string{"--only-when-changed", "--only-when-no-status-yet", "--context", "--target-url"} {
		if !strings.Contains(out, flag) {
			t.Errorf("status set --help does not mention %s:\n%s", flag, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}
