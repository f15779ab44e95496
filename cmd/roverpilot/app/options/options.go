package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/roverpilot/internal/autonomy"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/pkg/app"
	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/options"
)

type RoverOptions struct {
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions    *options.HttpOptions    `json:"http" mapstructure:"http"`
	GrpcOptions    *options.GrpcOptions    `json:"grpc" mapstructure:"grpc"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	MissionOptions *options.MissionOptions `json:"mission" mapstructure:"mission"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RoverOptions)(nil)

func NewRoverOptions() *RoverOptions {
	return &RoverOptions{
		MqttOptions:    options.NewMqttOptions(),
		HttpOptions:    options.NewHttpOptions(),
		GrpcOptions:    options.NewGrpcOptions(),
		S3Options:      options.NewS3Options(),
		MissionOptions: options.NewMissionOptions(),
		Log:            log.NewOptions(),
	}
}

func (o *RoverOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.MissionOptions.AddFlags(fss.FlagSet("mission"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *RoverOptions) Complete() error {
	return nil
}

func (o *RoverOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.MissionOptions.Validate()...)
	if err := planner.Validate(o.MissionOptions.OrderPlanner, o.MissionOptions.PathPlanner); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RoverOptions) Config() (*autonomy.Config, error) {
	return &autonomy.Config{
		MqttOptions:    o.MqttOptions,
		HttpOptions:    o.HttpOptions,
		GrpcOptions:    o.GrpcOptions,
		S3Options:      o.S3Options,
		MissionOptions: o.MissionOptions,
	}, nil
}
