package core

import (
	"context"

	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// VehicleMode is a vehicle indicator/state mode.
type VehicleMode string

const (
	ModeSeeking VehicleMode = "seeking"
	ModeIdle    VehicleMode = "idle"
	ModeArrival VehicleMode = "arrival"
)

// Vehicle switches the vehicle's state trigger. Calls are fire-and-forget; an error only means the
// request could not be sent.
type Vehicle interface {
	Trigger(ctx context.Context, mode VehicleMode) error
}

// Detector toggles the external object detector.
type Detector interface {
	SetObjectDetection(ctx context.Context, enabled bool) error
}

// MarkerKind distinguishes intermediate waypoints from the destination.
type MarkerKind string

const (
	MarkerIntermediate MarkerKind = "inter"
	MarkerGoal         MarkerKind = "goal"
)

// MarkerSink receives per-waypoint markers for external visualization.
type MarkerSink interface {
	PublishWaypoint(ctx context.Context, p geo.LatLng, kind MarkerKind) error
}

// FixSource provides the latest filtered GPS fix.
type FixSource interface {
	Fix() (geo.LatLng, bool)
}
