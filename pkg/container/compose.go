// pkg/container/compose.go

package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/belegsync/bsdeploy/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MaxComposeFileSize caps how much compose YAML we are willing to parse.
const MaxComposeFileSize = 5 * 1024 * 1024

// composeBuildTimeout bounds an image rebuild; cold builds of the OCR
// image routinely take several minutes.
const composeBuildTimeout = 20 * time.Minute

// ComposeService is the subset of a compose service definition we
// validate before building.
type ComposeService struct {
	Image string   `yaml:"image"`
	Build any      `yaml:"build"`
	Ports []string `yaml:"ports"`
}

// ComposeConfig is the subset of a compose file we validate.
type ComposeConfig struct {
	Services map[string]ComposeService `yaml:"services"`
	Volumes  map[string]any            `yaml:"volumes"`
}

// FindComposeFile locates the compose definition inside the checkout.
func FindComposeFile(dir string) (string, error) {
	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no compose file found in %s", dir)
}

// ValidateComposeFile parses the compose definition and rejects
// structurally broken or oversized files before docker sees them.
func ValidateComposeFile(path string) (*ComposeConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxComposeFileSize {
		return nil, fmt.Errorf("compose file too large: %d bytes (max %d)", info.Size(), MaxComposeFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg ComposeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid compose file %s: %w", path, err)
	}
	if len(cfg.Services) == 0 {
		return nil, fmt.Errorf("compose file %s defines no services", path)
	}
	return &cfg, nil
}

// BuildAndStart rebuilds the images from the current source tree and
// starts the composed services detached. noCache forces a clean rebuild.
func BuildAndStart(ctx context.Context, dir string, noCache bool) error {
	log := otelzap.Ctx(ctx)

	composeFile, err := FindComposeFile(dir)
	if err != nil {
		return err
	}
	if _, err := ValidateComposeFile(composeFile); err != nil {
		return err
	}

	buildArgs := []string{"compose", "-f", composeFile, "build"}
	if noCache {
		buildArgs = append(buildArgs, "--no-cache")
	}

	log.Info("Building container images",
		zap.String("compose_file", composeFile),
		zap.Bool("no_cache", noCache))
	if _, err := execute.Run(ctx, execute.Options{
		Command: "docker",
		Args:    buildArgs,
		Dir:     dir,
		Timeout: composeBuildTimeout,
	}); err != nil {
		return cerr.WithHint(err, "inspect the build output with: docker compose build")
	}

	log.Info("Starting services")
	if _, err := execute.Run(ctx, execute.Options{
		Command: "docker",
		Args:    []string{"compose", "-f", composeFile, "up", "-d"},
		Dir:     dir,
	}); err != nil {
		return cerr.WithHint(err, "inspect service state with: docker compose ps")
	}

	return nil
}
