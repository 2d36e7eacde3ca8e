package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lucasnoah/cibot/internal/config"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	cfgPath string
	envFile string
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "cibot",
	Short: "Annotation-driven CI decisions for pull requests",
	Long: `cibot reads +TESTS: and +DOCS directives from issue and pull request
discussions and turns them into CI decisions: which modules to test, which
commits still need a build, which commit statuses to write and which pull
requests need a docs build.

Configuration is read from ./cibot.yaml or ~/.cibot/config.yaml. Forge
credentials come from GITHUB_TOKEN or GITLAB_TOKEN, optionally via .env.
Designed to be called from CI jobs and cron.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFiles()...); err != nil {
			return err
		}
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := zc.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ./cibot.yaml or ~/.cibot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(makeConfigCmd)
	rootCmd.AddCommand(readConfigValueCmd)
	rootCmd.AddCommand(moduleListCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(buildTargetsCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
}
