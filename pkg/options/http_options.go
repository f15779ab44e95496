package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions configures the task gateway listener.
type HttpOptions struct {
	Network string `json:"network" mapstructure:"network"`
	Addr    string `json:"addr" mapstructure:"addr"`

	// Timeout bounds reading a request and writing its response.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// EnableMetrics exposes /metrics on the same listener.
	EnableMetrics bool `json:"enable-metrics" mapstructure:"enable-metrics"`
}

func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network:       "tcp",
		Addr:          "0.0.0.0:8443",
		Timeout:       30 * time.Second,
		EnableMetrics: true,
	}
}

func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, fmt.Errorf("--http.addr: %w", err))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--http.timeout must be positive"))
	}
	return errs
}

func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "http.network", o.Network, "Network of the task gateway listener.")
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Bind address of the task gateway.")
	fs.DurationVar(&o.Timeout, "http.timeout", o.Timeout, "Timeout for reading requests and writing responses.")
	fs.BoolVar(&o.EnableMetrics, "http.enable-metrics", o.EnableMetrics, "Serve Prometheus metrics on /metrics.")
}
