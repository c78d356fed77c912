// pkg/container/health.go

package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// HealthProbe polls a loopback health endpoint until the service answers.
// This loop is the only synchronization between "container launched" and
// "container ready for traffic".
type HealthProbe struct {
	URL         string
	MaxAttempts int
	Interval    time.Duration

	// HTTPClient is swappable for tests; nil means a short-timeout default.
	HTTPClient *http.Client
}

// NewHealthProbe builds the standard probe for the service port.
func NewHealthProbe(port int) *HealthProbe {
	return &HealthProbe{
		URL:         fmt.Sprintf("http://127.0.0.1:%d%s", port, shared.HealthPath),
		MaxAttempts: shared.HealthMaxAttempts,
		Interval:    shared.HealthInterval,
	}
}

// Await blocks until the endpoint answers with a success status, or the
// attempt budget is exhausted. It returns the number of probes issued.
func (p *HealthProbe) Await(ctx context.Context) (int, error) {
	log := otelzap.Ctx(ctx)
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	log.Info("Waiting for service to become healthy",
		zap.String("url", p.URL),
		zap.Int("max_attempts", p.MaxAttempts))

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return attempt, fmt.Errorf("build health request: %w", err)
		}

		resp, err := httpClient.Do(req)
		if err == nil {
			ok := resp.StatusCode >= 200 && resp.StatusCode < 300
			resp.Body.Close()
			if ok {
				log.Info("Service is healthy", zap.Int("attempt", attempt))
				return attempt, nil
			}
			log.Debug("Health endpoint answered but not ready",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
		} else {
			log.Debug("Health endpoint not reachable yet",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if attempt < p.MaxAttempts {
			select {
			case <-time.After(p.Interval):
			case <-ctx.Done():
				return attempt, ctx.Err()
			}
		}
	}

	return p.MaxAttempts, fmt.Errorf("service did not become healthy after %d attempts at %s", p.MaxAttempts, p.URL)
}

// RunningContainers lists container names and states so a failed health
// wait can point the operator at the right logs.
func RunningContainers(ctx context.Context) ([]string, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("init docker client: %w", err)
	}
	defer cli.Close()

	list, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	var out []string
	for _, c := range list {
		name := c.ID[:12]
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		out = append(out, fmt.Sprintf("%s (%s)", name, c.State))
	}
	return out, nil
}
