package options

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

var grpcNetworks = []string{"tcp", "tcp4", "tcp6", "unix"}

// GrpcOptions configures the gRPC health listener.
type GrpcOptions struct {
	Network string `json:"network" mapstructure:"network"`

	// Addr is host:port, or a socket path when Network is unix.
	Addr string `json:"addr" mapstructure:"addr"`

	// ProbeInterval is how often the navigation health status is refreshed.
	ProbeInterval time.Duration `json:"probe-interval" mapstructure:"probe-interval"`

	// EnableReflection registers the server reflection service.
	EnableReflection bool `json:"enable-reflection" mapstructure:"enable-reflection"`
}

func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Network:          "tcp",
		Addr:             "0.0.0.0:8091",
		ProbeInterval:    2 * time.Second,
		EnableReflection: true,
	}
}

func (o *GrpcOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !slices.Contains(grpcNetworks, o.Network) {
		errs = append(errs, fmt.Errorf("--grpc.network %q is not supported", o.Network))
	}
	if o.Network != "unix" {
		if err := ValidateAddress(o.Addr); err != nil {
			errs = append(errs, fmt.Errorf("--grpc.addr: %w", err))
		}
	}
	if o.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("--grpc.probe-interval must be positive"))
	}
	return errs
}

func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "grpc.network", o.Network, "Network of the health listener: tcp, tcp4, tcp6 or unix.")
	fs.StringVar(&o.Addr, "grpc.addr", o.Addr, "Bind address of the health listener.")
	fs.DurationVar(&o.ProbeInterval, "grpc.probe-interval", o.ProbeInterval, "How often the navigation health status is refreshed.")
	fs.BoolVar(&o.EnableReflection, "grpc.enable-reflection", o.EnableReflection, "Register the gRPC server reflection service.")
}
