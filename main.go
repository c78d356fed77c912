// main.go

package main

import (
	"fmt"
	"os"

	"github.com/belegsync/bsdeploy/cmd"
	"github.com/belegsync/bsdeploy/pkg/logger"
	"github.com/belegsync/bsdeploy/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()

	if err := telemetry.Init("bsdeploy"); err != nil {
		fmt.Fprintln(os.Stderr, "telemetry disabled:", err)
	}

	cmd.Execute()
}
