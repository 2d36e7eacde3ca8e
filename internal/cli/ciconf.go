package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cibot/internal/ciconf"
	"github.com/lucasnoah/cibot/internal/modules"
)

var makeConfigCmd = &cobra.Command{
	Use:   "make-config ISSUE",
	Short: "Resolve the module list and docs flag for an issue and write the CI config",
	Long: `Reads the issue or pull request description and comments, aggregates
their +TESTS: and +DOCS directives and writes the result as JSON with the
fields module_list, module_list_spaces and docs.`,
	Args: cobra.ExactArgs(1),
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

		path, _ := cmd.Flags().GetString("path")
		rec, err := e.MakeCIConfig(cmd.Context(), issue, path)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd, rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", ciconf.FieldModuleList, rec.ModuleList)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %t\n", ciconf.FieldDocs, rec.Docs)
		return nil
	},
}

var readConfigValueCmd = &cobra.Command{
	Use:   "read-config-value NAME",
	Short: "Print one field of the CI config written by make-config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		v, err := ciconf.ReadValue(path, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var moduleListCmd = &cobra.Command{
	Use:   "module-list [ISSUE]",
	Short: "Print the modules to test for an issue, or a named module group",
	Long: `With ISSUE, prints the modules to test for that issue or pull request.

With --group default|network|all, prints that group of the module universe
prefixed with the configured namespace, joined by --sep. Exactly one of
ISSUE and --group is required.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		if (group == "") == (len(args) == 0) {
			return fmt.Errorf("give either an ISSUE or --group")
		}
		var issue int
		if len(args) == 1 {
			n, err := parseIssue(args[0])
			if err != nil {
				return err
			}
			issue = n
		}
		e, cfg, cleanup, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		var list []string
		sep, _ := cmd.Flags().GetString("sep")
		if group != "" {
			list, err = e.ModuleGroup(group)
			if err != nil {
				return err
			}
		} else {
			list, err = e.ModuleTestList(cmd.Context(), issue)
			if err != nil {
				return err
			}
			if q, _ := cmd.Flags().GetBool("qualified"); q {
				list = modules.Qualify(list, cfg.Modules.Namespace)
			}
			if !cmd.Flags().Changed("sep") {
				sep = " "
			}
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			if list == nil {
				list = []string{}
			}
			return writeJSON(cmd, list)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(list, sep))
		return nil
	},
}

func init() {
	makeConfigCmd.Flags().String("path", ciconf.DefaultPath, "Where to write the CI config")
	makeConfigCmd.Flags().String("format", "text", "Output format: text or json")
	readConfigValueCmd.Flags().String("path", ciconf.DefaultPath, "CI config to read")
	moduleListCmd.Flags().Bool("qualified", false, "Prefix module names with the configured namespace")
	moduleListCmd.Flags().String("group", "", "Print a module group instead: default, network or all")
	moduleListCmd.Flags().String("sep", ",", "Separator between module names (issue lists default to a space)")
	moduleListCmd.Flags().String("format", "text", "Output format: text or json")
}
