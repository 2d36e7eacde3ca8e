package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cibot/internal/db"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the log of status and docs decisions",
}

var auditStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List status write decisions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAuditFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		sha, _ := cmd.Flags().GetString("sha")
		limit, _ := cmd.Flags().GetInt("limit")
		writes, err := d.ListStatusWrites(sha, limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, writes)
		}
		if len(writes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No status writes recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSHA\tCONTEXT\tSTATE\tRESULT")
		for _, sw := range writes {
			result := "written"
			if !sw.Written {
				result = "skipped (" + sw.Reason + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", sw.Timestamp, shortSHA(sw.SHA), sw.Context, sw.State, result)
		}
		return w.Flush()
	},
}

var auditDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List docs build events, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAuditFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		issue, _ := cmd.Flags().GetInt("issue")
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := d.ListDocsEvents(issue, limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No docs events recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tISSUE\tSHA\tACTION")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t#%d\t%s\t%s\n", ev.Timestamp, ev.Issue, shortSHA(ev.SHA), ev.Action)
		}
		return w.Flush()
	},
}

// openAuditFromConfig opens the configured audit database without building
// a forge client.
func openAuditFromConfig() (*db.DB, func(), error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audit.Disabled {
		return nil, nil, fmt.Errorf("audit log is disabled in config")
	}
	d, err := openAudit(cfg)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func init() {
	auditStatusCmd.Flags().String("sha", "", "Only show writes for this commit")
	auditStatusCmd.Flags().Int("limit", 50, "Maximum rows (0 for all)")
	auditStatusCmd.Flags().String("format", "text", "Output format: text or json")

	auditDocsCmd.Flags().Int("issue", 0, "Only show events for this issue")
	auditDocsCmd.Flags().Int("limit", 50, "Maximum rows (0 for all)")
	auditDocsCmd.Flags().String("format", "text", "Output format: text or json")

	auditCmd.AddCommand(auditStatusCmd)
	auditCmd.AddCommand(auditDocsCmd)
}
