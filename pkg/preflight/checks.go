// Package preflight verifies the host can actually run a deployment
// before anything is mutated. Checks are non-destructive, with one
// exception: a missing inference model is pulled on the spot, because
// that is the only prerequisite repairable without an operator.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/belegsync/bsdeploy/pkg/ollama"
	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/docker/docker/client"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// checkTimeout bounds each individual probe. The model pull inside the
// model check manages its own, much larger, budget.
const checkTimeout = 15 * time.Second

// Check is a single host capability probe.
type Check struct {
	Name        string
	Remediation string
	Probe       func(ctx context.Context) error
	Required    bool

	// LongRunning exempts the probe from the per-check timeout. Only the
	// model check sets this: a cold pull downloads several gigabytes.
	LongRunning bool
}

// Result records one check's outcome. Results are produced fresh on every
// run and never persisted.
type Result struct {
	Name        string
	Satisfied   bool
	Err         error
	Remediation string
}

// Run executes checks in order and aborts on the first failed required
// check. Later checks never run against a host already known to be
// broken; in particular the repairing model pull must not start a
// multi-gigabyte download when the docker daemon is down.
func Run(ctx context.Context, checks []Check) ([]Result, error) {
	log := otelzap.Ctx(ctx)
	log.Info("Running preflight checks", zap.Int("count", len(checks)))

	results := make([]Result, 0, len(checks))

	for _, c := range checks {
		var err error
		if c.LongRunning {
			err = c.Probe(ctx)
		} else {
			probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			err = c.Probe(probeCtx)
			cancel()
		}

		r := Result{Name: c.Name, Satisfied: err == nil, Err: err, Remediation: c.Remediation}
		results = append(results, r)

		if err == nil {
			log.Info("Check passed", zap.String("check", c.Name))
			continue
		}
		if c.Required {
			log.Error("Check failed", zap.String("check", c.Name), zap.Error(err),
				zap.String("remediation", c.Remediation))
			return results, fmt.Errorf("preflight check %q failed: %w", c.Name, err)
		}
		log.Warn("Check failed (optional)", zap.String("check", c.Name), zap.Error(err))
	}

	return results, nil
}

// DeployChecks assembles the prerequisite set for a deployment. The nginx
// binary is only required when a domain (and therefore a reverse proxy)
// is in play.
func DeployChecks(withProxy bool) []Check {
	checks := []Check{
		{
			Name:        "docker daemon",
			Remediation: "install Docker and start the daemon: sudo systemctl start docker",
			Probe:       CheckDockerDaemon,
			Required:    true,
		},
		{
			Name:        "docker compose plugin",
			Remediation: "install the compose plugin: sudo apt install docker-compose-plugin",
			Probe:       CheckDockerCompose,
			Required:    true,
		},
	}
	if withProxy {
		checks = append(checks,
			Check{
				Name:        "nginx binary",
				Remediation: "install nginx: sudo apt install nginx",
				Probe:       CheckBinary("nginx"),
				Required:    true,
			},
			Check{
				Name:        "certbot binary",
				Remediation: "install certbot: sudo apt install certbot python3-certbot-nginx",
				Probe:       CheckBinary("certbot"),
				Required:    true,
			},
		)
	}
	checks = append(checks,
		Check{
			Name:        "ollama endpoint",
			Remediation: "start the local Ollama service: sudo systemctl start ollama",
			Probe:       CheckOllama(shared.OllamaEndpoint),
			Required:    true,
		},
		Check{
			Name:        "ollama model " + shared.OllamaModel,
			Remediation: "pull the model manually: ollama pull " + shared.OllamaModel,
			Probe:       EnsureOllamaModel(shared.OllamaEndpoint, shared.OllamaModel),
			Required:    true,
			LongRunning: true,
		},
	)
	return checks
}

// CheckDockerDaemon pings the daemon over the SDK rather than shelling
// out, so a stopped daemon and a missing binary produce distinct errors.
func CheckDockerDaemon(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("init docker client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not responding: %w", err)
	}
	return nil
}

// CheckDockerCompose verifies the compose plugin answers.
func CheckDockerCompose(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "compose", "version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("docker compose not available: %w (%s)", err, out)
	}
	return nil
}

// CheckBinary probes PATH for a required host binary.
func CheckBinary(name string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", name, err)
		}
		return nil
	}
}

// CheckOllama lists models as the reachability probe; an empty but
// responsive endpoint passes.
func CheckOllama(endpoint string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := ollama.NewClient(endpoint).ListModels(ctx)
		return err
	}
}

// EnsureOllamaModel checks for the model and, when absent, blocks on a
// pull. This deliberately escalates from probe to repair.
func EnsureOllamaModel(endpoint, model string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return ollama.NewClient(endpoint).EnsureModel(ctx, model)
	}
}
