package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MissionOptions)(nil)

// MissionOptions holds the tunables of the mission executor.
// Distances are in metres.
type MissionOptions struct {
	// VehicleID is the identity used in every topic. Empty means discover it from the host.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	OrderPlanner string `json:"order-planner" mapstructure:"order-planner"`
	PathPlanner  string `json:"path-planner" mapstructure:"path-planner"`

	WaitTime         time.Duration `json:"wait-time" mapstructure:"wait-time"`
	UpdateThreshold  float64       `json:"update-threshold" mapstructure:"update-threshold"`
	WaypointDistance float64       `json:"waypoint-distance" mapstructure:"waypoint-distance"`

	SpinStops         int           `json:"spin-stops" mapstructure:"spin-stops"`
	SpinWaitTime      time.Duration `json:"spin-wait-time" mapstructure:"spin-wait-time"`
	SpinTimeAllowance time.Duration `json:"spin-time-allowance" mapstructure:"spin-time-allowance"`

	GPSNavTimeout time.Duration `json:"gps-nav-timeout" mapstructure:"gps-nav-timeout"`
	HexNavTimeout time.Duration `json:"hex-nav-timeout" mapstructure:"hex-nav-timeout"`

	PollInterval       time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
	SettleDelay        time.Duration `json:"settle-delay" mapstructure:"settle-delay"`
	ServerWaitInterval time.Duration `json:"server-wait-interval" mapstructure:"server-wait-interval"`
	NavActiveInterval  time.Duration `json:"nav-active-interval" mapstructure:"nav-active-interval"`
	FixWaitInterval    time.Duration `json:"fix-wait-interval" mapstructure:"fix-wait-interval"`

	TransformTolerance time.Duration `json:"transform-tolerance" mapstructure:"transform-tolerance"`

	// ObjectLabels maps a requested object class to the label the detector publishes.
	ObjectLabels map[string]string `json:"object-labels" mapstructure:"object-labels"`
}

// NewMissionOptions returns the field-tested defaults.
func NewMissionOptions() *MissionOptions {
	return &MissionOptions{
		OrderPlanner:       "greedy",
		PathPlanner:        "basic",
		WaitTime:           5 * time.Second,
		UpdateThreshold:    0.4,
		WaypointDistance:   18.0,
		SpinStops:          4,
		SpinWaitTime:       500 * time.Millisecond,
		SpinTimeAllowance:  10 * time.Second,
		GPSNavTimeout:      210 * time.Second,
		HexNavTimeout:      45 * time.Second,
		PollInterval:       100 * time.Millisecond,
		SettleDelay:        500 * time.Millisecond,
		ServerWaitInterval: time.Second,
		NavActiveInterval:  2 * time.Second,
		FixWaitInterval:    time.Second,
		TransformTolerance: 500 * time.Millisecond,
		ObjectLabels: map[string]string{
			"mallet": "Class ID: 0",
			"bottle": "Class ID: 1",
		},
	}
}

// Validate checks ranges only. Planner names are checked against the planner registry by the caller.
func (o *MissionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	positive := map[string]time.Duration{
		"--mission.poll-interval":        o.PollInterval,
		"--mission.gps-nav-timeout":      o.GPSNavTimeout,
		"--mission.hex-nav-timeout":      o.HexNavTimeout,
		"--mission.spin-time-allowance":  o.SpinTimeAllowance,
		"--mission.server-wait-interval": o.ServerWaitInterval,
		"--mission.nav-active-interval":  o.NavActiveInterval,
		"--mission.fix-wait-interval":    o.FixWaitInterval,
	}
	for flag, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", flag, d))
		}
	}

	nonNegative := map[string]time.Duration{
		"--mission.wait-time":           o.WaitTime,
		"--mission.spin-wait-time":      o.SpinWaitTime,
		"--mission.settle-delay":        o.SettleDelay,
		"--mission.transform-tolerance": o.TransformTolerance,
	}
	for flag, d := range nonNegative {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", flag, d))
		}
	}

	if o.SpinStops < 2 {
		errs = append(errs, fmt.Errorf("--mission.spin-stops must be at least 2, got %d", o.SpinStops))
	}
	if o.UpdateThreshold <= 0 {
		errs = append(errs, fmt.Errorf("--mission.update-threshold must be positive, got %v", o.UpdateThreshold))
	}
	if o.WaypointDistance <= 0 {
		errs = append(errs, fmt.Errorf("--mission.waypoint-distance must be positive, got %v", o.WaypointDistance))
	}
	if o.OrderPlanner == "" {
		errs = append(errs, fmt.Errorf("--mission.order-planner must be set"))
	}
	if o.PathPlanner == "" {
		errs = append(errs, fmt.Errorf("--mission.path-planner must be set"))
	}
	for class, label := range o.ObjectLabels {
		if class == "" || label == "" {
			errs = append(errs, fmt.Errorf("--mission.object-labels has an empty class or label (%q=%q)", class, label))
		}
	}

	return errs
}

// AddFlags adds flags for MissionOptions to the specified FlagSet.
func (o *MissionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.VehicleID, "mission.vehicle-id", o.VehicleID, "Vehicle identity used in topics. Discovered from the host when empty.")
	fs.StringVar(&o.OrderPlanner, "mission.order-planner", o.OrderPlanner, "Leg ordering strategy (none, greedy, brute).")
	fs.StringVar(&o.PathPlanner, "mission.path-planner", o.PathPlanner, "Path planning strategy (basic).")

	fs.DurationVar(&o.WaitTime, "mission.wait-time", o.WaitTime, "How long the arrival indication is held after a leg.")
	fs.Float64Var(&o.UpdateThreshold, "mission.update-threshold", o.UpdateThreshold, "Distance in metres a refined target must move before navigation restarts.")
	fs.Float64Var(&o.WaypointDistance, "mission.waypoint-distance", o.WaypointDistance, "Maximum distance in metres between planned waypoints.")

	fs.IntVar(&o.SpinStops, "mission.spin-stops", o.SpinStops, "Number of equal segments a spin search divides a rotation into.")
	fs.DurationVar(&o.SpinWaitTime, "mission.spin-wait-time", o.SpinWaitTime, "Pause after each spin segment.")
	fs.DurationVar(&o.SpinTimeAllowance, "mission.spin-time-allowance", o.SpinTimeAllowance, "Time allowance sent with each spin goal.")

	fs.DurationVar(&o.GPSNavTimeout, "mission.gps-nav-timeout", o.GPSNavTimeout, "Budget for the first approach to a leg target.")
	fs.DurationVar(&o.HexNavTimeout, "mission.hex-nav-timeout", o.HexNavTimeout, "Budget for reaching each hex search point.")

	fs.DurationVar(&o.PollInterval, "mission.poll-interval", o.PollInterval, "Navigation poll tick.")
	fs.DurationVar(&o.SettleDelay, "mission.settle-delay", o.SettleDelay, "Pause after a goal cancel before the next submission.")
	fs.DurationVar(&o.ServerWaitInterval, "mission.server-wait-interval", o.ServerWaitInterval, "Retry interval while a navigation action server is unavailable.")
	fs.DurationVar(&o.NavActiveInterval, "mission.nav-active-interval", o.NavActiveInterval, "Poll interval while waiting for the navigation subsystem to become active.")
	fs.DurationVar(&o.FixWaitInterval, "mission.fix-wait-interval", o.FixWaitInterval, "Base interval while waiting for the first GPS fix.")
	fs.DurationVar(&o.TransformTolerance, "mission.transform-tolerance", o.TransformTolerance, "Maximum stamp distance between an observation and the transform used for it.")

	fs.StringToStringVar(&o.ObjectLabels, "mission.object-labels", o.ObjectLabels, "Object class to detector label mapping.")
}
