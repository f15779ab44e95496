package app

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/roverpilot/cmd/roverpilot/app/options"
	"github.com/autopeer-io/roverpilot/internal/autonomy"
	"github.com/autopeer-io/roverpilot/pkg/app"
	"github.com/autopeer-io/roverpilot/pkg/log"
	genericoptions "github.com/autopeer-io/roverpilot/pkg/options"
)

const (
	commandName = "roverpilot"
	commandDesc = `roverpilot executes multi-leg autonomy missions on the rover: it drives the
navigation subsystem to GPS waypoints, searches for fiducial markers and objects, and
reports progress to the task client. Mission tunables in the config file are reloaded
on change and apply from the next mission on.`
)

func NewApp() *app.App {
	opts := options.NewRoverOptions()
	var agent atomic.Pointer[autonomy.Agent]

	return app.NewApp(
		commandName,
		"Launch the rover mission executor",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithLogOptions(func() *log.Options { return opts.Log }),
		app.WithDefaultValidArgs(),
		app.WithConfigReload(reload(&agent)),
		app.WithRunFunc(run(opts, &agent)),
	)
}

func run(opts *options.RoverOptions, agent *atomic.Pointer[autonomy.Agent]) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		a, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		agent.Store(a)

		return a.Run(ctx)
	}
}

// reload re-reads the mission section. Everything else needs a restart.
func reload(agent *atomic.Pointer[autonomy.Agent]) app.ReloadFunc {
	return func(v *viper.Viper, _ fsnotify.Event) {
		a := agent.Load()
		if a == nil {
			return
		}

		mo := genericoptions.NewMissionOptions()
		if err := v.UnmarshalKey("mission", mo); err != nil {
			log.Error(err, "Failed to decode reloaded mission options")
			return
		}
		if err := a.Reload(mo); err != nil {
			log.Error(err, "Rejected reloaded mission options, keeping the previous ones")
		}
	}
}
