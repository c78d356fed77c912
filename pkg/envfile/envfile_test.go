// pkg/envfile/envfile_test.go

package envfile

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envTemplate = `DATABASE_URL=sqlite:///./data/belegsync.db
SECRET_KEY=change-me-in-production
MAESN_API_KEY=
OLLAMA_URL=http://localhost:11434
`

func writeTemplate(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, shared.EnvTemplateName), []byte(envTemplate), 0o644))
}

func TestEnsureCreatesEnvWithGeneratedSecret(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	cfg, err := Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, cfg.Created)

	raw, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), shared.SecretKeyPlaceholder)

	secret := cfg.Values["SECRET_KEY"]
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), secret)

	// Untouched template keys survive the substitution.
	assert.Equal(t, "http://localhost:11434", cfg.Values["OLLAMA_URL"])
}

func TestEnsureIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	ctx := context.Background()

	first, err := Ensure(ctx, dir)
	require.NoError(t, err)

	firstBytes, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	firstInfo, err := os.Stat(first.Path)
	require.NoError(t, err)

	second, err := Ensure(ctx, dir)
	require.NoError(t, err)
	assert.False(t, second.Created)

	secondBytes, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	secondInfo, err := os.Stat(second.Path)
	require.NoError(t, err)

	// The secret is never regenerated: byte-identical file, unchanged mtime.
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, firstInfo.ModTime(), secondInfo.ModTime())
	assert.Equal(t, first.Values["SECRET_KEY"], second.Values["SECRET_KEY"])
}

func TestEnsureExistingFileNeverRewritten(t *testing.T) {
	dir := t.TempDir()
	// No template at all: an existing .env must still be honored as-is.
	manual := "SECRET_KEY=operator-chose-this\nMAESN_API_KEY=k-123\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, shared.EnvFileName), []byte(manual), 0o600))

	cfg, err := Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, cfg.Created)
	assert.Equal(t, "operator-chose-this", cfg.Values["SECRET_KEY"])
}

func TestEnsureMissingTemplate(t *testing.T) {
	_, err := Ensure(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), shared.EnvTemplateName)
}

func TestEnsureDataDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureDataDirs(dir))
	require.NoError(t, EnsureDataDirs(dir)) // second call is a no-op

	for _, sub := range []string{"data", "uploads"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestGenerateSecretShape(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}
