// pkg/bsd_cli/wrap.go

package bsd_cli

import (
	"context"

	"github.com/belegsync/bsdeploy/pkg/bsd_err"
	"github.com/belegsync/bsdeploy/pkg/bsd_io"
	"github.com/belegsync/bsdeploy/pkg/logger"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// Wrap adapts a RuntimeContext-based command function to cobra's RunE,
// adding panic recovery, outcome logging and span finalization.
func Wrap(fn func(rc *bsd_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		logger.InitFallback()

		rc := bsd_io.NewContext(context.Background(), cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		err = fn(rc, cmd, args)
		if err != nil && !bsd_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
