// pkg/bsd_err/util.go

package bsd_err

import (
	"context"
	"errors"
	"strings"
)

// UserError marks a failure the operator is expected to fix themselves:
// a missing binary, a diverged checkout, an unissued certificate. These
// carry remediation text and do not deserve a stack trace.
type UserError struct {
	Err error
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewExpectedError wraps err as a user-correctable failure. Returns nil
// for a nil err so callers can wrap unconditionally.
func NewExpectedError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &UserError{Err: err}
}

// IsExpectedUserError reports whether err (anywhere in its chain) was
// marked as user-correctable.
func IsExpectedUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// ExitCode maps an error to the process exit status: 0 for nil,
// 1 for everything else. The deployment has no partial-failure code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// ExtractSummary pulls the last n non-empty lines out of captured command
// output so log entries stay readable when a tool dumps pages of text.
func ExtractSummary(ctx context.Context, output string, n int) string {
	if n <= 0 {
		n = 1
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var tail []string
	for i := len(lines) - 1; i >= 0 && len(tail) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			tail = append([]string{line}, tail...)
		}
	}
	return strings.Join(tail, " | ")
}
