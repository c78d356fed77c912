// pkg/certbot/certbot_test.go

package certbot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/belegsync/bsdeploy/pkg/nginx"
	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tlsTemplate = `server {
    listen 443 ssl;
    server_name DOMAIN_PLACEHOLDER;
    ssl_certificate /etc/letsencrypt/live/DOMAIN_PLACEHOLDER/fullchain.pem;
    location / { proxy_pass http://127.0.0.1:8000; }
}
`

// fixture wires a Bootstrapper against temp dirs and a recording runner.
type fixture struct {
	b *Bootstrapper
	m *nginx.Manager

	calls       []string
	certbotErr  error
	siteAtIssue string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.m = &nginx.Manager{
		AvailableDir: t.TempDir(),
		EnabledDir:   t.TempDir(),
		SiteName:     shared.AppName,
	}
	f.m.Run = func(ctx context.Context, command string, args ...string) (string, error) {
		f.calls = append(f.calls, command+" "+strings.Join(args, " "))
		return "", nil
	}

	f.b = &Bootstrapper{
		LiveDir: t.TempDir(),
		Nginx:   f.m,
		Run: func(ctx context.Context, command string, args ...string) (string, error) {
			f.calls = append(f.calls, command+" "+strings.Join(args, " "))
			if command == "certbot" {
				// Capture the active site config at issuance time: this is
				// the moment the on-disk config must still be TLS-free.
				raw, _ := os.ReadFile(f.m.SitePath())
				f.siteAtIssue = string(raw)
				if f.certbotErr != nil {
					return "", f.certbotErr
				}
				require.NoError(t, os.MkdirAll(filepath.Join(f.b.LiveDir, args[len(args)-1]), 0o755))
			}
			return "", nil
		},
	}
	return f
}

func (f *fixture) templatePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.conf")
	require.NoError(t, os.WriteFile(path, []byte(tlsTemplate), 0o644))
	return path
}

func (f *fixture) certbotCalls() []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "certbot") {
			out = append(out, c)
		}
	}
	return out
}

func TestEnsureFreshDomain(t *testing.T) {
	f := newFixture(t)
	domain := "belege.example.test"

	states, err := f.b.Ensure(context.Background(), domain, f.templatePath(t), 8000)
	require.NoError(t, err)

	assert.Equal(t, []State{StateNoCert, StateBootstrappingHTTP, StateIssuing, StateRestored}, states)

	// The config active during issuance carried no TLS directives.
	assert.NotContains(t, f.siteAtIssue, "ssl")
	assert.Contains(t, f.siteAtIssue, "server_name "+domain+";")

	// The final config is the canonical TLS one with the domain substituted.
	final, err := os.ReadFile(f.m.SitePath())
	require.NoError(t, err)
	assert.Contains(t, string(final), "listen 443 ssl;")
	assert.Contains(t, string(final), "/etc/letsencrypt/live/"+domain+"/fullchain.pem")
	assert.NotContains(t, string(final), shared.DomainPlaceholder)

	// Non-interactive issuance for the exact domain, terms accepted,
	// contact derived from the domain.
	calls := f.certbotCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "--non-interactive")
	assert.Contains(t, calls[0], "--agree-tos")
	assert.Contains(t, calls[0], "-m admin@"+domain)
	assert.Contains(t, calls[0], "-d "+domain)
}

func TestEnsureAlreadyHasCert(t *testing.T) {
	f := newFixture(t)
	domain := "belege.example.test"
	require.NoError(t, os.MkdirAll(filepath.Join(f.b.LiveDir, domain), 0o755))

	states, err := f.b.Ensure(context.Background(), domain, f.templatePath(t), 8000)
	require.NoError(t, err)

	assert.Equal(t, []State{StateAlreadyHasCert}, states)
	assert.Empty(t, f.certbotCalls(), "no CA invocation on the skip path")

	// The config is still re-rendered, then validated and reloaded.
	assert.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, f.calls)
	site, readErr := os.ReadFile(f.m.SitePath())
	require.NoError(t, readErr)
	assert.Contains(t, string(site), "server_name "+domain+";")
}

func TestEnsureIssuanceFailureLeavesHTTPOnlyActive(t *testing.T) {
	f := newFixture(t)
	f.certbotErr = errors.New("challenge failed: DNS problem")
	domain := "belege.example.test"

	states, err := f.b.Ensure(context.Background(), domain, f.templatePath(t), 8000)
	require.Error(t, err)

	assert.Equal(t, []State{StateNoCert, StateBootstrappingHTTP, StateIssuing}, states)

	// The intermediate plain-HTTP config stays on disk for diagnosis.
	site, readErr := os.ReadFile(f.m.SitePath())
	require.NoError(t, readErr)
	assert.NotContains(t, string(site), "ssl")
	assert.Contains(t, string(site), "proxy_pass http://127.0.0.1:8000;")
}

func TestCertificateExists(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.b.CertificateExists("belege.example.test"))

	require.NoError(t, os.MkdirAll(filepath.Join(f.b.LiveDir, "belege.example.test"), 0o755))
	assert.True(t, f.b.CertificateExists("belege.example.test"))
}
