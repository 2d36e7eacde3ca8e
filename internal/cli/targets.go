package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildTargetsCmd = &cobra.Command{
	Use:   "build-targets",
	Short: "Print the branch tips and pull request heads that still need a build",
	Long: `Resolves each configured branch tip and every open pull request head and
prints, space separated, the LABEL_REPO:REF token of each commit whose
status for --context is neither success nor failure. Branch tips come first
in branch order, then pull requests in forge order.`,
	Args: cobra.NoArgs,
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
		branches := cfg.Status.Branches
		if cmd.Flags().Changed("branch") {
			branches, _ = cmd.Flags().GetStringSlice("branch")
		}
		includePRs := cfg.Status.IncludePullRequests()
		if cmd.Flags().Changed("prs") {
			includePRs, _ = cmd.Flags().GetBool("prs")
		}

		selected, err := e.SelectBuildTargets(cmd.Context(), statusContext, branches, includePRs)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			if selected == nil {
				return writeJSON(cmd, []any{})
			}
			return writeJSON(cmd, selected)
		}
		for i, c := range selected {
			if i > 0 {
				fmt.Fprint(cmd.OutOrStdout(), " ")
			}
			fmt.Fprint(cmd.OutOrStdout(), c.String())
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	buildTargetsCmd.Flags().String("context", "", "Status context (default from config)")
	buildTargetsCmd.Flags().StringSlice("branch", nil, "Branches to consider (default from config; repeatable)")
	buildTargetsCmd.Flags().Bool("prs", true, "Include open pull requests (default from config)")
	buildTargetsCmd.Flags().String("format", "text", "Output format: text or json")
}
