// Package app implements roverctl, the operator CLI of the rover mission executor.
package app

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	serverEnv     = "ROVERCTL_SERVER"
	grpcServerEnv = "ROVERCTL_GRPC_SERVER"
)

type rootOptions struct {
	server     string
	grpcServer string
	timeout    time.Duration
}

func (o *rootOptions) client() *client {
	return newClient(o.server, o.timeout)
}

func NewRoverctlCommand(ctx context.Context) *cobra.Command {
	opts := &rootOptions{
		server:     "127.0.0.1:8443",
		grpcServer: "127.0.0.1:8091",
		timeout:    10 * time.Second,
	}

	cmd := &cobra.Command{
		Use:           "roverctl",
		Short:         "Submit, watch and cancel rover missions",
		Long:          "roverctl talks to the roverpilot task gateway. Addresses default to the local rover and may be set in a .env file.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if v := os.Getenv(serverEnv); v != "" && !cmd.Flags().Changed("server") {
				opts.server = v
			}
			if v := os.Getenv(grpcServerEnv); v != "" && !cmd.Flags().Changed("grpc-server") {
				opts.grpcServer = v
			}
			return nil
		},
	}
	cmd.SetContext(ctx)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.server, "server", "s", opts.server, "Task gateway HTTP address (env "+serverEnv+").")
	pf.StringVar(&opts.grpcServer, "grpc-server", opts.grpcServer, "Health gRPC address (env "+grpcServerEnv+").")
	pf.DurationVar(&opts.timeout, "timeout", opts.timeout, "Per-request timeout.")

	cmd.AddCommand(
		newSubmitCommand(opts),
		newCancelCommand(opts),
		newStatusCommand(opts),
		newHealthCommand(opts),
	)
	return cmd
}
