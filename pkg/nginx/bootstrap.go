// pkg/nginx/bootstrap.go

package nginx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// httpOnlyTemplate is the minimal plain-HTTP site used while a certificate
// is being issued. It carries no TLS directives at all: the ACME challenge
// needs a live unencrypted listener on the target domain, and the full
// config cannot validate before the certificate files exist.
const httpOnlyTemplate = `server {
    listen 80;
    listen [::]:80;
    server_name {{ .Domain }};

    client_max_body_size 50m;

    location / {
        proxy_pass http://127.0.0.1:{{ .Port }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`

// InstallHTTPOnly overwrites the site config with the plain-HTTP variant
// proxying to the internal service port.
func (m *Manager) InstallHTTPOnly(ctx context.Context, domain string, port int) error {
	tmpl, err := template.New("http-only").Parse(httpOnlyTemplate)
	if err != nil {
		return fmt.Errorf("parse bootstrap template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Domain string
		Port   int
	}{domain, port}); err != nil {
		return fmt.Errorf("render bootstrap config: %w", err)
	}

	if err := os.WriteFile(m.SitePath(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write bootstrap config %s: %w", m.SitePath(), err)
	}

	otelzap.Ctx(ctx).Info("HTTP-only bootstrap configuration installed",
		zap.String("domain", domain),
		zap.Int("port", port),
		zap.String("path", m.SitePath()))
	return nil
}
