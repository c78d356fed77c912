// pkg/preflight/checks_test.go

package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(ctx context.Context) error { return nil }

func failing(msg string) func(ctx context.Context) error {
	return func(ctx context.Context) error { return errors.New(msg) }
}

func TestRunAllPassing(t *testing.T) {
	checks := []Check{
		{Name: "a", Probe: passing, Required: true},
		{Name: "b", Probe: passing, Required: true},
	}

	results, err := Run(context.Background(), checks)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Satisfied)
	}
}

func TestRunRequiredFailureIsFatal(t *testing.T) {
	laterRan := false
	checks := []Check{
		{Name: "docker", Probe: failing("daemon down"), Required: true, Remediation: "start docker"},
		{Name: "later", Required: true, Probe: func(ctx context.Context) error {
			laterRan = true
			return nil
		}},
	}

	results, err := Run(context.Background(), checks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker")

	// The run stops at the first required failure; nothing after it runs.
	require.Len(t, results, 1)
	assert.False(t, results[0].Satisfied)
	assert.Equal(t, "start docker", results[0].Remediation)
	assert.False(t, laterRan)
}

func TestRunRequiredFailureSkipsModelPull(t *testing.T) {
	pulled := false
	checks := []Check{
		{Name: "docker daemon", Probe: failing("daemon down"), Required: true},
		{Name: "ollama model", Required: true, LongRunning: true, Probe: func(ctx context.Context) error {
			pulled = true
			return nil
		}},
	}

	_, err := Run(context.Background(), checks)
	require.Error(t, err)
	assert.False(t, pulled, "model pull must not start on a broken host")
}

func TestRunOptionalFailureIsNotFatal(t *testing.T) {
	checks := []Check{
		{Name: "required", Probe: passing, Required: true},
		{Name: "optional", Probe: failing("meh"), Required: false},
	}

	results, err := Run(context.Background(), checks)
	require.NoError(t, err)
	assert.False(t, results[1].Satisfied)
}

func TestCheckBinaryMissing(t *testing.T) {
	err := CheckBinary("definitely-not-a-real-binary-name")(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in PATH")
}

func TestDeployChecksProxyVariants(t *testing.T) {
	withProxy := DeployChecks(true)
	withoutProxy := DeployChecks(false)

	names := func(checks []Check) []string {
		var out []string
		for _, c := range checks {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Contains(t, names(withProxy), "nginx binary")
	assert.Contains(t, names(withProxy), "certbot binary")
	assert.NotContains(t, names(withoutProxy), "nginx binary")

	// The model check is the only one exempt from the probe timeout.
	for _, c := range withProxy {
		if c.LongRunning {
			assert.Contains(t, c.Name, "ollama model")
		}
	}
}
