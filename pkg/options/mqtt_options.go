package options

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/roverpilot/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions configures the broker connection every rover subsystem talks through.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	// ClientID defaults to roverpilot-<vehicle id>.
	ClientID string `json:"client-id" mapstructure:"client-id"`

	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify accepts any broker certificate. Only for bench setups.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot is the namespace of every topic: {TopicRoot}/{segment}/{vehicleID}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// AckTimeout bounds the wait for a goal acknowledgement from the navigation subsystem.
	AckTimeout time.Duration `json:"ack-timeout" mapstructure:"ack-timeout"`
}

func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:           "tcp://127.0.0.1:1883",
		KeepAlive:        30 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ReconnectBackoff: 2 * time.Second,
		SessionExpiry:    60,
		CleanStart:       true,
		TopicRoot:        "rover/v1",
		AckTimeout:       5 * time.Second,
	}
}

func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Broker == "" {
		errs = append(errs, fmt.Errorf("--mqtt.broker must be set"))
	} else if u, err := url.Parse(o.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("--mqtt.broker %q is not a broker URL", o.Broker))
	}
	if o.KeepAlive < time.Second || o.KeepAlive.Seconds() > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("--mqtt.keep-alive must be between 1s and %ds", math.MaxUint16))
	}
	if o.TopicRoot == "" || strings.ContainsAny(o.TopicRoot, "+#") {
		errs = append(errs, fmt.Errorf("--mqtt.topic-root %q must be a non-empty topic without wildcards", o.TopicRoot))
	}
	if o.AckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--mqtt.ack-timeout must be positive"))
	}
	return errs
}

func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "Broker URL, e.g. tcp://127.0.0.1:1883 or ssl://broker:8883.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "Broker username.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "Broker password.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Client ID; defaults to roverpilot-<vehicle id>.")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "Keep alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout of a single connection attempt.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Delay between reconnection attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "Session expiry interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start a clean session on the first connection.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "Skip broker certificate verification.")

	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Namespace prepended to every rover topic.")
	fs.DurationVar(&o.AckTimeout, "mqtt.ack-timeout", o.AckTimeout, "How long to wait for the navigation subsystem to acknowledge a goal.")
}

func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}
