package navclient

import (
	"context"
	"time"

	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// Action names a navigation action server.
type Action string

const (
	ActionFollowWaypoints Action = "follow_waypoints"
	ActionSpin            Action = "spin"
)

// Status is the lifecycle status of a goal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusAborted   Status = "aborted"
	StatusCanceled  Status = "canceled"
	StatusUnknown   Status = "unknown"
)

// Terminal reports whether no further status change is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusAborted, StatusCanceled:
		return true
	default:
		return false
	}
}

// Goal is the payload of one navigation goal.
type Goal struct {
	Action Action

	// Waypoints is set for ActionFollowWaypoints; the last element is the destination.
	Waypoints []geo.LatLng

	// TargetYaw (radians) and TimeAllowance are set for ActionSpin.
	TargetYaw     float64
	TimeAllowance time.Duration
}

// Feedback is the latest progress report of a goal.
type Feedback struct {
	DistanceRemaining float64       `json:"distance_remaining"`
	NavigationTime    time.Duration `json:"navigation_time"`
	Recoveries        int           `json:"recoveries"`
}

// Transport is the underlying protocol client. It is NOT safe for concurrent use; Client serializes
// every call to it.
type Transport interface {
	// ServerReady reports whether the action server for action is reachable right now.
	ServerReady(ctx context.Context, action Action) bool

	// SendGoal submits goal under id and waits for the server to accept or reject it.
	SendGoal(ctx context.Context, id string, goal Goal) (accepted bool, err error)

	// Status returns the last known status of goal id without blocking.
	Status(id string) Status

	// Feedback returns the latest feedback of goal id, if any arrived.
	Feedback(id string) (Feedback, bool)

	// CancelGoal requests early termination of goal id.
	CancelGoal(ctx context.Context, id string) error

	// NavigatorActive reports whether the navigation subsystem is fully initialized.
	NavigatorActive(ctx context.Context) (bool, error)
}
