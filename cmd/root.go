// cmd/root.go

package cmd

import (
	"os"

	"github.com/belegsync/bsdeploy/pkg/bsd_err"
	"github.com/belegsync/bsdeploy/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd is the base command for bsdeploy.
var RootCmd = &cobra.Command{
	Use:   "bsdeploy",
	Short: "Deploy and re-deploy the BelegSync service on this host",
	Long: `bsdeploy provisions a single-host BelegSync installation: it verifies
prerequisites, syncs the application source, bootstraps the environment,
builds and starts the containers, and configures nginx with TLS.

Every step is safe to re-run after a partial failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with the appropriate status code.
func Execute() {
	RootCmd.AddCommand(deployCmd, checkCmd, versionCmd)

	if err := RootCmd.Execute(); err != nil {
		if !bsd_err.IsExpectedUserError(err) {
			logger.L().Error("Fatal error", zap.Error(err))
		}
		os.Exit(bsd_err.ExitCode(err))
	}
}
