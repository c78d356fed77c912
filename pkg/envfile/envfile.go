// Package envfile materializes the application's secret-bearing .env
// exactly once. Creating the file is the one irreversible bootstrap
// action: a re-run must never regenerate or rotate the secret, so an
// existing file is always returned as-is.
package envfile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Config is the parsed environment file.
type Config struct {
	Path    string
	Values  map[string]string
	Created bool
}

// Ensure returns the environment config for dir, creating it from the
// bundled template on first deploy. The generated SECRET_KEY is 256 bits
// of randomness as 64 hex characters.
func Ensure(ctx context.Context, dir string) (*Config, error) {
	log := otelzap.Ctx(ctx)
	envPath := filepath.Join(dir, shared.EnvFileName)

	if _, err := os.Stat(envPath); err == nil {
		values, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("parse existing %s: %w", envPath, err)
		}
		log.Info("Environment file already exists, leaving it untouched",
			zap.String("path", envPath))
		warnMissingExternalKey(ctx, values)
		return &Config{Path: envPath, Values: values}, nil
	}

	templatePath := filepath.Join(dir, shared.EnvTemplateName)
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read environment template %s: %w", templatePath, err)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	rendered := strings.ReplaceAll(string(template), shared.SecretKeyPlaceholder, secret)
	if err := os.WriteFile(envPath, []byte(rendered), 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", envPath, err)
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return nil, fmt.Errorf("parse rendered %s: %w", envPath, err)
	}

	log.Info("Environment file created with a generated secret",
		zap.String("path", envPath))
	warnMissingExternalKey(ctx, values)

	return &Config{Path: envPath, Values: values, Created: true}, nil
}

// EnsureDataDirs creates the application's persistent directories. They
// are never pruned.
func EnsureDataDirs(dir string) error {
	for _, sub := range []string{"data", "uploads"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", sub, err)
		}
	}
	return nil
}

// generateSecret produces 256 bits of randomness as 64 hex characters.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// warnMissingExternalKey reminds the operator about the one credential
// this tool cannot obtain itself.
func warnMissingExternalKey(ctx context.Context, values map[string]string) {
	if values[shared.ExternalAPIKeyVar] == "" {
		otelzap.Ctx(ctx).Warn("External API key is not set and must be entered manually",
			zap.String("variable", shared.ExternalAPIKeyVar))
	}
}
