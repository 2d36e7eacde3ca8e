package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cibot/internal/engine"
	"github.com/lucasnoah/cibot/internal/forge"
	"github.com/lucasnoah/cibot/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and write commit statuses",
}

var statusGetCmd = &cobra.Command{
	Use:   "get SHA",
	Short: "Print the state of a status context on a commit",
	Long: `Prints the latest state of --context on SHA, or "none" when the commit
has no status for it. An empty --context prints the combined state of all
contexts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cfg, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		statusContext := cfg.Status.Context
		if cmd.Flags().Changed("context") {
			statusContext, _ = cmd.Flags().GetString("context")
		}
		state, ok, err := e.CommitStatus(cmd.Context(), args[0], statusContext)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "none")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

var statusSetCmd = &cobra.Command{
	Use:   "set SHA STATE",
	Short: "Write a commit status, subject to the write guard",
	Long: `Writes STATE (success, failure, error or pending) for --context on SHA.

--only-when-changed (on by default) skips the write when the context already
has STATE, so repeated cron runs do not pile up identical statuses; pass
--only-when-changed=false to force a write.
--only-when-no-status-yet skips the write when the context has any state.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := status.ParseState(args[1])
		if err != nil {
			return err
		}
		e, cfg, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		statusContext := cfg.Status.Context
		if cmd.Flags().Changed("context") {
			statusContext, _ = cmd.Flags().GetString("context")
		}
		description, _ := cmd.Flags().GetString("description")
		targetURL, _ := cmd.Flags().GetString("target-url")
		onlyChanged, _ := cmd.Flags().GetBool("only-when-changed")
		onlyNew, _ := cmd.Flags().GetBool("only-when-no-status-yet")

		d, err := e.SetCommitStatus(cmd.Context(), engine.SetStatusOpts{
			StatusOpts: forge.StatusOpts{
				SHA:         args[0],
				State:       state,
				Context:     statusContext,
				Description: description,
				TargetURL:   targetURL,
			},
			WriteOpts: status.WriteOpts{
				OnlyWhenChanged:     onlyChanged,
				OnlyWhenNoStatusYet: onlyNew,
			},
		})
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, d)
		}
		if d.Write {
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s=%s on %s\n", statusContext, state, args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s on %s: %s\n", statusContext, args[0], d.Reason)
		}
		return nil
	},
}

var statusMarkPendingCmd = &cobra.Command{
	Use:   "mark-pending",
	Short: "Set a pending status on open pull requests that have none yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cfg, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		statusContext := cfg.Status.Context
		if cmd.Flags().Changed("context") {
			statusContext, _ = cmd.Flags().GetString("context")
		}
		description := cfg.Status.PendingDescription
		if cmd.Flags().Changed("description") {
			description, _ = cmd.Flags().GetString("description")
		}

		results, err := e.MarkOpenPullRequestsPending(cmd.Context(), statusContext, description)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No open pull requests.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PR\tSHA\tRESULT")
		for _, r := range results {
			result := "pending"
			if !r.Written {
				result = "skipped (" + r.Reason + ")"
			}
			fmt.Fprintf(w, "#%d\t%s\t%s\n", r.Number, shortSHA(r.SHA), result)
		}
		return w.Flush()
	},
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}

func init() {
	statusGetCmd.Flags().String("context", "", "Status context (default from config; empty string for the combined state)")

	statusSetCmd.Flags().String("context", "", "Status context (default from config)")
	statusSetCmd.Flags().String("description", "", "Status description")
	statusSetCmd.Flags().String("target-url", "", "Link attached to the status")
	statusSetCmd.Flags().Bool("only-when-changed", true, "Skip the write when the context already has this state")
	statusSetCmd.Flags().Bool("only-when-no-status-yet", false, "Skip the write when the context already has any state")
	statusSetCmd.Flags().String("format", "text", "Output format: text or json")

	statusMarkPendingCmd.Flags().String("context", "", "Status context (default from config)")
	statusMarkPendingCmd.Flags().String("description", "", "Pending description (default from config)")
	statusMarkPendingCmd.Flags().String("format", "text", "Output format: text or json")

	statusCmd.AddCommand(statusGetCmd)
	statusCmd.AddCommand(statusSetCmd)
	statusCmd.AddCommand(statusMarkPendingCmd)
}
