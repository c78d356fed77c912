// Package deploy sequences a full deployment run: prerequisites, source
// sync, environment bootstrap, container build and health wait, then
// reverse proxy and TLS when a domain is configured. Stages run strictly
// in order and the first failure aborts the run; nothing is rolled back,
// the host is left as-is for inspection.
package deploy

import (
	"fmt"
	"strings"
	"time"

	"github.com/belegsync/bsdeploy/pkg/bsd_io"
	"github.com/belegsync/bsdeploy/pkg/certbot"
	"github.com/belegsync/bsdeploy/pkg/container"
	"github.com/belegsync/bsdeploy/pkg/envfile"
	"github.com/belegsync/bsdeploy/pkg/gitsync"
	"github.com/belegsync/bsdeploy/pkg/nginx"
	"github.com/belegsync/bsdeploy/pkg/preflight"
	"github.com/belegsync/bsdeploy/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Config is everything one deployment run needs. The two historical
// deployment variants (with and without a reverse proxy) collapse into
// the optional Domain: when it is empty the proxy and certificate stages
// are skipped and the service is exposed on PublicPort directly.
type Config struct {
	Domain      string
	AppDir      string
	RepoURL     string
	ServicePort int
	PublicPort  int
	NoCache     bool
}

// WithProxy reports whether the nginx and certificate stages run.
func (c Config) WithProxy() bool {
	return c.Domain != ""
}

// Validate rejects configurations that cannot possibly deploy.
func (c Config) Validate() error {
	if c.AppDir == "" {
		return fmt.Errorf("application directory must be set")
	}
	if c.RepoURL == "" {
		return fmt.Errorf("repository URL must be set")
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("invalid service port %d", c.ServicePort)
	}
	if !c.WithProxy() && (c.PublicPort <= 0 || c.PublicPort > 65535) {
		return fmt.Errorf("invalid public port %d", c.PublicPort)
	}
	return nil
}

// URL is where the deployed service answers once the run succeeds.
func (c Config) URL() string {
	if c.WithProxy() {
		return "https://" + c.Domain
	}
	return fmt.Sprintf("http://localhost:%d", c.PublicPort)
}

// StageResult records one completed stage for the final report.
type StageResult struct {
	Name     string
	Duration time.Duration
}

// Result is the outcome of a run.
type Result struct {
	RunID     string
	Stages    []StageResult
	Duration  time.Duration
	URL       string
	CertState []certbot.State
}

// Deployer holds the stage implementations. Each field has a production
// default from NewDeployer; tests swap individual stages out.
type Deployer struct {
	Config Config

	RunPreflight func(rc *bsd_io.RuntimeContext) error
	SyncSource   func(rc *bsd_io.RuntimeContext) error
	BootstrapEnv func(rc *bsd_io.RuntimeContext) (*envfile.Config, error)
	BuildStart   func(rc *bsd_io.RuntimeContext) error
	AwaitHealthy func(rc *bsd_io.RuntimeContext) (int, error)
	EnsureProxy  func(rc *bsd_io.RuntimeContext) ([]certbot.State, error)

	// ListContainers feeds the log-retrieval hint on a failed health wait.
	ListContainers func(rc *bsd_io.RuntimeContext) ([]string, error)
}

// NewDeployer wires the real stage implementations for cfg.
func NewDeployer(cfg Config) *Deployer {
	ngx := nginx.NewManager()
	cb := certbot.NewBootstrapper(ngx)

	return &Deployer{
		Config: cfg,
		RunPreflight: func(rc *bsd_io.RuntimeContext) error {
			_, err := preflight.Run(rc.Ctx, preflight.DeployChecks(cfg.WithProxy()))
			return err
		},
		SyncSource: func(rc *bsd_io.RuntimeContext) error {
			return gitsync.Sync(rc.Ctx, cfg.RepoURL, cfg.AppDir)
		},
		BootstrapEnv: func(rc *bsd_io.RuntimeContext) (*envfile.Config, error) {
			if err := envfile.EnsureDataDirs(cfg.AppDir); err != nil {
				return nil, err
			}
			return envfile.Ensure(rc.Ctx, cfg.AppDir)
		},
		BuildStart: func(rc *bsd_io.RuntimeContext) error {
			return container.BuildAndStart(rc.Ctx, cfg.AppDir, cfg.NoCache)
		},
		AwaitHealthy: func(rc *bsd_io.RuntimeContext) (int, error) {
			return container.NewHealthProbe(cfg.ServicePort).Await(rc.Ctx)
		},
		EnsureProxy: func(rc *bsd_io.RuntimeContext) ([]certbot.State, error) {
			templatePath := cfg.AppDir + "/" + shared.NginxTemplateRelPath
			return cb.Ensure(rc.Ctx, cfg.Domain, templatePath, cfg.ServicePort)
		},
		ListContainers: func(rc *bsd_io.RuntimeContext) ([]string, error) {
			return container.RunningContainers(rc.Ctx)
		},
	}
}

// healthFailureHint tells the operator where the service logs live. The
// compose filename varies across checkouts, so it is looked up rather
// than assumed.
func (d *Deployer) healthFailureHint(rc *bsd_io.RuntimeContext) string {
	hint := "inspect the service logs with: docker compose logs (run from " + d.Config.AppDir + ")"
	if composeFile, err := container.FindComposeFile(d.Config.AppDir); err == nil {
		hint = "inspect the service logs with: docker compose -f " + composeFile + " logs"
	}
	if d.ListContainers != nil {
		if names, err := d.ListContainers(rc); err == nil && len(names) > 0 {
			hint += "; containers: " + strings.Join(names, ", ")
		}
	}
	return hint
}

// Deploy runs every stage in order, failing fast on the first error.
func (d *Deployer) Deploy(rc *bsd_io.RuntimeContext) (*Result, error) {
	log := otelzap.Ctx(rc.Ctx)

	if err := d.Config.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID: uuid.NewString(),
		URL:   d.Config.URL(),
	}
	start := time.Now()

	log.Info("Starting deployment",
		zap.String("run_id", result.RunID),
		zap.String("app_dir", d.Config.AppDir),
		zap.String("domain", d.Config.Domain),
		zap.Bool("with_proxy", d.Config.WithProxy()),
		zap.Bool("no_cache", d.Config.NoCache))

	var env *envfile.Config

	stages := []struct {
		name string
		run  func(rc *bsd_io.RuntimeContext) error
	}{
		{"preflight", d.RunPreflight},
		{"source sync", d.SyncSource},
		{"environment bootstrap", func(rc *bsd_io.RuntimeContext) error {
			var err error
			env, err = d.BootstrapEnv(rc)
			return err
		}},
		{"build and start", d.BuildStart},
		{"health wait", func(rc *bsd_io.RuntimeContext) error {
			attempts, err := d.AwaitHealthy(rc)
			if err != nil {
				return cerr.WithHint(err, d.healthFailureHint(rc))
			}
			log.Debug("Health wait finished", zap.Int("attempts", attempts))
			return nil
		}},
	}

	if d.Config.WithProxy() {
		stages = append(stages, struct {
			name string
			run  func(rc *bsd_io.RuntimeContext) error
		}{"reverse proxy and tls", func(rc *bsd_io.RuntimeContext) error {
			states, err := d.EnsureProxy(rc)
			result.CertState = states
			return err
		}})
	} else {
		log.Info("No domain configured, skipping reverse proxy and certificate stages",
			zap.Int("public_port", d.Config.PublicPort))
	}

	for _, stage := range stages {
		stageStart := time.Now()
		log.Info("Stage starting", zap.String("stage", stage.name))

		if err := stage.run(rc); err != nil {
			log.Error("Stage failed, aborting run",
				zap.String("stage", stage.name),
				zap.Error(err))
			return result, cerr.Wrapf(err, "stage %q failed", stage.name)
		}

		result.Stages = append(result.Stages, StageResult{
			Name:     stage.name,
			Duration: time.Since(stageStart),
		})
		log.Info("Stage completed",
			zap.String("stage", stage.name),
			zap.Duration("duration", time.Since(stageStart)))
	}

	result.Duration = time.Since(start)
	d.logSummary(rc, result, env)
	return result, nil
}

// logSummary prints the final operator-facing report, repeating the
// manual follow-ups that the run itself cannot perform.
func (d *Deployer) logSummary(rc *bsd_io.RuntimeContext, result *Result, env *envfile.Config) {
	log := otelzap.Ctx(rc.Ctx)

	log.Info("Deployment completed",
		zap.String("run_id", result.RunID),
		zap.String("url", result.URL),
		zap.Duration("duration", result.Duration),
		zap.Int("stages", len(result.Stages)))

	if env != nil && env.Values[shared.ExternalAPIKeyVar] == "" {
		log.Warn("Reminder: enter the external API key manually",
			zap.String("variable", shared.ExternalAPIKeyVar),
			zap.String("file", env.Path))
	}
}
