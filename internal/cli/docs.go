package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Track documentation builds requested with +DOCS",
}

var docsRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List open pull requests whose discussion asks for a docs build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		prs, err := e.DocBuildRequests(cmd.Context())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, prs)
		}
		if len(prs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No docs builds requested.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PR\tHEAD\tSHA")
		for _, pr := range prs {
			fmt.Fprintf(w, "#%d\t%s\t%s\n", pr.Number, pr.HeadLabel, shortSHA(pr.HeadSHA))
		}
		return w.Flush()
	},
}

var docsQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue docs builds for requesting pull requests with new commits",
	Long: `For every open pull request that asks for a docs build, records the head
commit time in its marker and queues a build when the last finished build
is not newer than that commit. Meant to run from cron.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		actions, err := e.QueueDocBuilds(cmd.Context())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, actions)
		}
		if len(actions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No docs builds requested.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PR\tSHA\tCOMMITTED\tACTION")
		for _, a := range actions {
			fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n", a.Number, shortSHA(a.SHA), a.CommitTime.UTC().Format(time.RFC3339), a.Action)
		}
		return w.Flush()
	},
}

var docsDoneCmd = &cobra.Command{
	Use:   "done ISSUE",
	Short: "Record a finished docs build for an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := parseIssue(args[0])
		if err != nil {
			return err
		}
		at := time.Now()
		if s, _ := cmd.Flags().GetString("at"); s != "" {
			at, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("invalid --at %q: %w", s, err)
			}
		}

		e, _, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := e.MarkDocsBuilt(cmd.Context(), issue, at); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked docs for #%d built at %s\n", issue, at.UTC().Format(time.RFC3339))
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show ISSUE",
	Short: "Show the docs build marker of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := parseIssue(args[0])
		if err != nil {
			return err
		}
		e, _, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		m, err := e.DocsMarker(cmd.Context(), issue)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, m)
		}
		if m == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No docs marker for #%d.\n", issue)
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Issue:     #%d\n", m.Issue)
		fmt.Fprintf(out, "Head:      %s:%s\n", m.Fork, m.Branch)
		fmt.Fprintf(out, "Requested: %s\n", formatTime(m.RequestedAt))
		fmt.Fprintf(out, "Done:      %s\n", formatTime(m.DoneAt))
		fmt.Fprintf(out, "Queued:    %t\n", m.Queued)
		return nil
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func init() {
	docsRequestsCmd.Flags().String("format", "text", "Output format: text or json")
	docsQueueCmd.Flags().String("format", "text", "Output format: text or json")
	docsDoneCmd.Flags().String("at", "", "Build finish time in RFC 3339 (default now)")
	docsShowCmd.Flags().String("format", "text", "Output format: text or json")

	docsCmd.AddCommand(docsRequestsCmd)
	docsCmd.AddCommand(docsQueueCmd)
	docsCmd.AddCommand(docsDoneCmd)
	docsCmd.AddCommand(docsShowCmd)
}
