package mission

import (
	"time"

	"github.com/autopeer-io/roverpilot/pkg/options"
)

// Tunables are the per-mission parameters. A mission reads them once when it starts; reloads only
// affect later missions.
type Tunables struct {
	OrderPlanner string
	PathPlanner  string

	WaitTime         time.Duration
	UpdateThreshold  float64
	WaypointDistance float64

	SpinStops         int
	SpinWaitTime      time.Duration
	SpinTimeAllowance time.Duration

	GPSNavTimeout time.Duration
	HexNavTimeout time.Duration

	PollInterval      time.Duration
	NavActiveInterval time.Duration
	FixWaitInterval   time.Duration
}

// TunablesFromOptions copies the mission tunables out of o.
func TunablesFromOptions(o *options.MissionOptions) Tunables {
	return Tunables{
		OrderPlanner:      o.OrderPlanner,
		PathPlanner:       o.PathPlanner,
		WaitTime:          o.WaitTime,
		UpdateThreshold:   o.UpdateThreshold,
		WaypointDistance:  o.WaypointDistance,
		SpinStops:         o.SpinStops,
		SpinWaitTime:      o.SpinWaitTime,
		SpinTimeAllowance: o.SpinTimeAllowance,
		GPSNavTimeout:     o.GPSNavTimeout,
		HexNavTimeout:     o.HexNavTimeout,
		PollInterval:      o.PollInterval,
		NavActiveInterval: o.NavActiveInterval,
		FixWaitInterval:   o.FixWaitInterval,
	}
}

// DefaultTunables returns the field-tested defaults.
func DefaultTunables() Tunables {
	return TunablesFromOptions(options.NewMissionOptions())
}
