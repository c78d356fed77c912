// cmd/check.go

package cmd

import (
	"github.com/belegsync/bsdeploy/pkg/bsd_cli"
	"github.com/belegsync/bsdeploy/pkg/bsd_err"
	"github.com/belegsync/bsdeploy/pkg/bsd_io"
	"github.com/belegsync/bsdeploy/pkg/preflight"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the deployment prerequisite checks without deploying",
	Long: `Probe the host for everything a deployment needs: the docker daemon,
the compose plugin, nginx and certbot (when --proxy is set), and the local
Ollama service with the required model. A missing model is pulled
automatically; everything else is reported with remediation steps.`,
	RunE: bsd_cli.Wrap(func(rc *bsd_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		log := otelzap.Ctx(rc.Ctx)
		withProxy, _ := cmd.Flags().GetBool("proxy")

		results, err := preflight.Run(rc.Ctx, preflight.DeployChecks(withProxy))
		for _, r := range results {
			if r.Satisfied {
				continue
			}
			log.Warn("Unsatisfied prerequisite",
				zap.String("check", r.Name),
				zap.String("remediation", r.Remediation))
		}
		if err != nil {
			return bsd_err.NewExpectedError(rc.Ctx, cerr.WithHint(err,
				"fix the reported prerequisites and run bsdeploy check again"))
		}

		log.Info("All prerequisites satisfied")
		return nil
	}),
}

func init() {
	checkCmd.Flags().Bool("proxy", true, "include the reverse proxy prerequisites (nginx, certbot)")
}
