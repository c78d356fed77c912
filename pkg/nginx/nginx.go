// Package nginx installs and activates the reverse-proxy configuration
// for the deployed service. Rendered configs always proxy to the internal
// service port on loopback; a validate-then-reload cycle gates every
// activation so an invalid config never goes live.
package nginx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/belegsync/bsdeploy/pkg/execute"
	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Runner abstracts command execution so tests can intercept nginx and
// systemctl invocations.
type Runner func(ctx context.Context, command string, args ...string) (string, error)

func defaultRunner(ctx context.Context, command string, args ...string) (string, error) {
	return execute.Run(ctx, execute.Options{Command: command, Args: args, Capture: true})
}

// Manager owns the site configuration for one deployment.
type Manager struct {
	AvailableDir string
	EnabledDir   string
	SiteName     string
	Run          Runner
}

// NewManager builds a Manager against the host's standard nginx layout.
func NewManager() *Manager {
	return &Manager{
		AvailableDir: shared.NginxAvailableDir,
		EnabledDir:   shared.NginxEnabledDir,
		SiteName:     shared.AppName,
		Run:          defaultRunner,
	}
}

// SitePath is the rendered configuration's location.
func (m *Manager) SitePath() string {
	return filepath.Join(m.AvailableDir, m.SiteName+".conf")
}

// Render substitutes every occurrence of the domain placeholder in the
// template text.
func Render(template []byte, domain string) []byte {
	return []byte(strings.ReplaceAll(string(template), shared.DomainPlaceholder, domain))
}

// InstallFromTemplate renders the canonical (TLS-capable) site template
// and writes it into sites-available. The config is re-rendered on every
// run; it is never treated as operator-owned state.
func (m *Manager) InstallFromTemplate(ctx context.Context, templatePath, domain string) error {
	log := otelzap.Ctx(ctx)

	template, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read proxy template %s: %w", templatePath, err)
	}

	rendered := Render(template, domain)
	if err := os.WriteFile(m.SitePath(), rendered, 0o644); err != nil {
		return fmt.Errorf("write site config %s: %w", m.SitePath(), err)
	}

	log.Info("Proxy configuration rendered",
		zap.String("template", templatePath),
		zap.String("domain", domain),
		zap.String("path", m.SitePath()))
	return nil
}

// EnsureEnabled creates the enable-symlink when absent. An existing link
// (or file) is left alone.
func (m *Manager) EnsureEnabled(ctx context.Context) error {
	link := filepath.Join(m.EnabledDir, m.SiteName+".conf")
	if _, err := os.Lstat(link); err == nil {
		otelzap.Ctx(ctx).Debug("Site already enabled", zap.String("link", link))
		return nil
	}
	if err := os.Symlink(m.SitePath(), link); err != nil {
		return fmt.Errorf("enable site %s: %w", m.SiteName, err)
	}
	otelzap.Ctx(ctx).Info("Site enabled", zap.String("link", link))
	return nil
}

// Validate runs `nginx -t`. A failure here means the active configuration
// stays untouched.
func (m *Manager) Validate(ctx context.Context) error {
	out, err := m.Run(ctx, "nginx", "-t")
	if err != nil {
		return fmt.Errorf("nginx configuration invalid: %w (%s)", err, strings.TrimSpace(out))
	}
	return nil
}

// Reload asks the running nginx to pick up the new configuration.
func (m *Manager) Reload(ctx context.Context) error {
	if _, err := m.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("reload nginx: %w", err)
	}
	return nil
}

// ValidateAndReload is the activation gate: reload only ever happens
// after a successful validate.
func (m *Manager) ValidateAndReload(ctx context.Context) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	return m.Reload(ctx)
}

// Configure renders the canonical template for the domain, ensures the
// enable-symlink, and activates the result.
func (m *Manager) Configure(ctx context.Context, templatePath, domain string) error {
	if err := m.InstallFromTemplate(ctx, templatePath, domain); err != nil {
		return err
	}
	if err := m.EnsureEnabled(ctx); err != nil {
		return err
	}
	return m.ValidateAndReload(ctx)
}
