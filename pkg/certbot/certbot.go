// Package certbot resolves the HTTP/TLS chicken-and-egg problem: the
// certificate challenge needs a live plain-HTTP listener on the domain,
// while the final proxy configuration assumes the certificate already
// exists. A small state machine orders the two so that the TLS-capable
// configuration is only ever written after issuance succeeded.
package certbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/belegsync/bsdeploy/pkg/execute"
	"github.com/belegsync/bsdeploy/pkg/nginx"
	"github.com/belegsync/bsdeploy/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// State names one step of the certificate bootstrap.
type State string

const (
	StateNoCert            State = "NoCert"
	StateAlreadyHasCert    State = "AlreadyHasCert"
	StateBootstrappingHTTP State = "BootstrappingHttp"
	StateIssuing           State = "IssuingCertificate"
	StateRestored          State = "FullConfigRestored"
)

// issueTimeout bounds the certbot invocation; DNS propagation waits are
// the operator's problem, not a reason to hang forever.
const issueTimeout = 5 * time.Minute

// Bootstrapper drives certificate issuance and the surrounding proxy
// configuration swaps for one domain.
type Bootstrapper struct {
	LiveDir string
	Nginx   *nginx.Manager
	Run     nginx.Runner
}

// NewBootstrapper wires the standard Let's Encrypt layout and the given
// proxy manager.
func NewBootstrapper(ngx *nginx.Manager) *Bootstrapper {
	return &Bootstrapper{
		LiveDir: shared.LetsEncryptLiveDir,
		Nginx:   ngx,
		Run: func(ctx context.Context, command string, args ...string) (string, error) {
			return execute.Run(ctx, execute.Options{
				Command: command,
				Args:    args,
				Capture: true,
				Timeout: issueTimeout,
			})
		},
	}
}

// CertificateExists checks the certificate store for the domain. The
// store is external ground truth owned by certbot; we only ever read it.
func (b *Bootstrapper) CertificateExists(domain string) bool {
	_, err := os.Stat(filepath.Join(b.LiveDir, domain))
	return err == nil
}

// Ensure brings the domain to "TLS-capable proxy config active, backed by
// a real certificate", passing through the HTTP-only intermediate when no
// certificate exists yet. It returns the states traversed.
//
// On issuance failure the HTTP-only intermediate stays active so the
// operator can diagnose DNS or reachability and re-run.
func (b *Bootstrapper) Ensure(ctx context.Context, domain, templatePath string, servicePort int) ([]State, error) {
	log := otelzap.Ctx(ctx)

	if b.CertificateExists(domain) {
		// The site config is re-rendered on every run; only the
		// certificate itself is left alone.
		log.Info("Certificate already present, refreshing proxy configuration",
			zap.String("domain", domain))
		if err := b.Nginx.Configure(ctx, templatePath, domain); err != nil {
			return []State{StateAlreadyHasCert}, err
		}
		return []State{StateAlreadyHasCert}, nil
	}

	states := []State{StateNoCert}
	log.Info("No certificate found, bootstrapping over plain HTTP",
		zap.String("domain", domain))

	states = append(states, StateBootstrappingHTTP)
	if err := b.Nginx.InstallHTTPOnly(ctx, domain, servicePort); err != nil {
		return states, err
	}
	if err := b.Nginx.EnsureEnabled(ctx); err != nil {
		return states, err
	}
	if err := b.Nginx.ValidateAndReload(ctx); err != nil {
		return states, err
	}

	states = append(states, StateIssuing)
	if err := b.issue(ctx, domain); err != nil {
		return states, cerr.WithHint(err,
			"the proxy is still serving plain HTTP; check DNS for the domain and re-run the deploy")
	}

	states = append(states, StateRestored)
	log.Info("Certificate issued, restoring TLS configuration",
		zap.String("domain", domain))
	if err := b.Nginx.InstallFromTemplate(ctx, templatePath, domain); err != nil {
		return states, err
	}
	if err := b.Nginx.ValidateAndReload(ctx); err != nil {
		return states, err
	}

	return states, nil
}

// issue invokes certbot non-interactively for the exact domain, agreeing
// to the CA terms and deriving the contact address from the domain.
func (b *Bootstrapper) issue(ctx context.Context, domain string) error {
	out, err := b.Run(ctx, "certbot",
		"certonly",
		"--nginx",
		"--non-interactive",
		"--agree-tos",
		"-m", "admin@"+domain,
		"-d", domain,
	)
	if err != nil {
		return fmt.Errorf("certificate issuance for %s failed: %w (%s)", domain, err, out)
	}
	return nil
}
