package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cibot/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a read-only web UI over the decision log",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openAuditFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		port, _ := cmd.Flags().GetInt("port")
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := web.NewServer(d, fmt.Sprintf(":%d", port), logger)
		fmt.Fprintf(cmd.OutOrStdout(), "cibot UI: http://localhost:%d\n", port)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 17432, "Port to listen on")
}
