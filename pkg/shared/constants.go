// pkg/shared/constants.go

package shared

import "time"

// Version is stamped at build time via -ldflags.
var Version = "dev"

const (
	// AppName is the service this tool deploys.
	AppName = "belegsync"

	// DefaultAppDir is where the application checkout lives on the host.
	DefaultAppDir = "/opt/belegsync"

	// DefaultRepoURL is the canonical upstream for the application source.
	DefaultRepoURL = "https://github.com/belegsync/belegsync.git"

	// DefaultServicePort is the port the container exposes on loopback.
	DefaultServicePort = 8000

	// DefaultPublicPort is used when no domain is configured and the
	// service is exposed directly instead of through nginx.
	DefaultPublicPort = 8080

	// HealthPath is the application's readiness endpoint.
	HealthPath = "/api/health"

	// HealthMaxAttempts and HealthInterval bound the readiness poll.
	HealthMaxAttempts = 30
	HealthInterval    = 2 * time.Second

	// OllamaEndpoint is the local inference service the application needs.
	OllamaEndpoint = "http://localhost:11434"

	// OllamaModel must be present on the inference service before the
	// application can extract anything.
	OllamaModel = "llama3.1:8b-instruct-q4_K_M"

	// EnvFileName and EnvTemplateName describe the secret-bearing config.
	EnvFileName     = ".env"
	EnvTemplateName = ".env.example"

	// SecretKeyPlaceholder is the template value replaced exactly once,
	// on first deploy, with a generated secret.
	SecretKeyPlaceholder = "change-me-in-production"

	// ExternalAPIKeyVar names the credential we cannot obtain ourselves.
	ExternalAPIKeyVar = "MAESN_API_KEY"

	// DomainPlaceholder is the token substituted throughout the nginx
	// site template.
	DomainPlaceholder = "DOMAIN_PLACEHOLDER"

	// NginxTemplateRelPath is the TLS-capable site template inside the
	// application checkout.
	NginxTemplateRelPath = "scripts/nginx-belegsync.conf"

	// NginxAvailableDir and NginxEnabledDir are the host's nginx layout.
	NginxAvailableDir = "/etc/nginx/sites-available"
	NginxEnabledDir   = "/etc/nginx/sites-enabled"

	// LetsEncryptLiveDir is where certbot keeps issued certificates.
	LetsEncryptLiveDir = "/etc/letsencrypt/live"
)
