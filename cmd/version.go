// cmd/version.go

package cmd

import (
	"fmt"
	"runtime"

	"github.com/belegsync/bsdeploy/pkg/shared"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bsdeploy %s (%s/%s, %s)\n",
			shared.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
