package main

import (
	"os"

	"k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/roverpilot/cmd/roverctl/app"
)

func main() {
	ctx := server.SetupSignalContext()
	if err := app.NewRoverctlCommand(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}
