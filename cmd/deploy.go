// cmd/deploy.go

package cmd

import (
	"strings"

	"github.com/belegsync/bsdeploy/pkg/bsd_cli"
	"github.com/belegsync/bsdeploy/pkg/bsd_io"
	"github.com/belegsync/bsdeploy/pkg/deploy"
	"github.com/belegsync/bsdeploy/pkg/execute"
	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run a full deployment",
	Long: `Run the full deployment sequence: preflight checks, source sync,
environment bootstrap, container build and start, health wait, and (when a
domain is configured) nginx plus TLS certificate bootstrap.

Without --domain the reverse proxy and certificate stages are skipped and
the service is exposed directly on the public port.

Examples:
  # Deploy behind nginx with automatic TLS
  bsdeploy deploy --domain belege.example.com

  # Deploy without a reverse proxy, exposed on port 8080
  bsdeploy deploy

  # Force a clean image rebuild
  bsdeploy deploy --domain belege.example.com --no-cache`,
	RunE: bsd_cli.Wrap(func(rc *bsd_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		log := otelzap.Ctx(rc.Ctx)

		cfg := configFromFlags(cmd)
		execute.DefaultDryRun, _ = cmd.Flags().GetBool("dry-run")

		log.Info("Deployment configuration",
			zap.String("domain", cfg.Domain),
			zap.String("app_dir", cfg.AppDir),
			zap.String("repo", cfg.RepoURL),
			zap.Int("service_port", cfg.ServicePort),
			zap.Int("public_port", cfg.PublicPort),
			zap.Bool("no_cache", cfg.NoCache))

		result, err := deploy.NewDeployer(cfg).Deploy(rc)
		if err != nil {
			return err
		}

		log.Info("Service is live", zap.String("url", result.URL))
		return nil
	}),
}

func init() {
	deployCmd.Flags().String("domain", "", "public domain for the reverse proxy (omit to expose directly)")
	deployCmd.Flags().String("dir", shared.DefaultAppDir, "application directory on this host")
	deployCmd.Flags().String("repo", shared.DefaultRepoURL, "upstream repository URL")
	deployCmd.Flags().Int("port", shared.DefaultServicePort, "internal service port the container exposes")
	deployCmd.Flags().Int("public-port", shared.DefaultPublicPort, "public port when no reverse proxy is used")
	deployCmd.Flags().Bool("no-cache", false, "rebuild container images without the build cache")
	deployCmd.Flags().Bool("dry-run", false, "log mutating commands instead of executing them")

	initConfigFile()
}

// initConfigFile binds an optional host-level config file and BSDEPLOY_*
// environment variables as flag defaults.
func initConfigFile() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/bsdeploy")
	viper.AddConfigPath("$HOME/.bsdeploy")
	viper.SetEnvPrefix("bsdeploy")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and built-in defaults apply.
	_ = viper.ReadInConfig()
}

// configFromFlags resolves the deployment config with the precedence
// flag > environment > config file > built-in default.
func configFromFlags(cmd *cobra.Command) deploy.Config {
	str := func(flag string, fallback string) string {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			return v
		}
		if viper.IsSet(flag) {
			return viper.GetString(flag)
		}
		return fallback
	}
	num := func(flag string, fallback int) int {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetInt(flag)
			return v
		}
		if viper.IsSet(flag) {
			return viper.GetInt(flag)
		}
		return fallback
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	return deploy.Config{
		Domain:      str("domain", ""),
		AppDir:      str("dir", shared.DefaultAppDir),
		RepoURL:     str("repo", shared.DefaultRepoURL),
		ServicePort: num("port", shared.DefaultServicePort),
		PublicPort:  num("public-port", shared.DefaultPublicPort),
		NoCache:     noCache || viper.GetBool("no-cache"),
	}
}
