package app

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	roverpilotgrpc "github.com/autopeer-io/roverpilot/internal/autonomy/server/grpc"
	grpcmiddleware "github.com/autopeer-io/roverpilot/internal/pkg/middleware/grpc"
)

func newHealthCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health of the executor and the navigation subsystem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpc.NewClient(root.grpcServer,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithUnaryInterceptor(grpcmiddleware.UnaryTimeout(root.timeout)),
			)
			if err != nil {
				return fmt.Errorf("failed to initialize gRPC client for %s: %w", root.grpcServer, err)
			}
			defer conn.Close()

			hc := healthpb.NewHealthClient(conn)
			t := uitable.New()
			t.AddRow("SERVICE", "STATUS")

			serving := true
			for _, svc := range []string{"", roverpilotgrpc.NavService} {
				name := svc
				if name == "" {
					name = "(overall)"
				}
				resp, err := hc.Check(cmd.Context(), &healthpb.HealthCheckRequest{Service: svc})
				if err != nil {
					return fmt.Errorf("health check %s: %w", name, err)
				}
				t.AddRow(name, resp.GetStatus())
				serving = serving && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
			}

			fmt.Fprintln(cmd.OutOrStdout(), t)
			if !serving {
				return fmt.Errorf("not serving")
			}
			return nil
		},
	}
}
