// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/belegsync/bsdeploy/pkg/bsd_err"
	"github.com/belegsync/bsdeploy/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultDryRun forces dry-run mode for every invocation; set once from
// the top-level --dry-run flag.
var DefaultDryRun bool

// Options describes a single external command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Capture bool
	Timeout time.Duration
	Retries int
	Delay   time.Duration
	DryRun  bool
}

// Run executes a command with structured logging, a bounded timeout and
// optional retries. Output is captured and returned when Capture is set.
func Run(ctx context.Context, opts Options) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := otelzap.Ctx(ctx)
	cmdStr := opts.Command + " " + strings.Join(opts.Args, " ")

	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	runCtx, span := telemetry.Start(runCtx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)
	defer span.End()

	if opts.DryRun || DefaultDryRun {
		log.Info("Dry run, command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	log.Debug("Starting execution", zap.String("command", cmdStr))

	var output string
	var err error

	attempts := max(1, opts.Retries)
	for i := 1; i <= attempts; i++ {
		cmd := exec.CommandContext(runCtx, opts.Command, opts.Args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}

		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf

		err = cmd.Run()
		output = buf.String()

		if err == nil {
			log.Debug("Execution succeeded", zap.String("command", cmdStr))
			break
		}

		span.RecordError(err)
		log.Error("Execution failed", zap.Error(err),
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", bsd_err.ExtractSummary(ctx, output, 2)),
		)

		if i < attempts {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, cerr.Wrapf(err, "command %q failed", cmdStr)
	}

	if opts.Capture {
		return output, nil
	}
	return "", nil
}

// RunSimple executes a command with default options, discarding output.
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args})
	return err
}

func defaultTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return 5 * time.Minute
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
