package core

import "errors"

var (
	// ErrServerUnavailable is returned when a navigation action endpoint never became reachable
	// before the process was shut down.
	ErrServerUnavailable = errors.New("navigation server unavailable")

	// ErrTransformUnavailable marks an observation that could not be placed in the absolute frame.
	// Sensor handlers drop such observations.
	ErrTransformUnavailable = errors.New("transform unavailable")

	// ErrLegTimedOut marks a leg whose navigation budget ran out. The mission continues.
	ErrLegTimedOut = errors.New("leg timed out")

	// ErrLegSearchExhausted marks a leg whose target was not found by any search. The mission continues.
	ErrLegSearchExhausted = errors.New("leg search exhausted")

	// ErrMissionCanceled aborts the whole mission.
	ErrMissionCanceled = errors.New("task execution canceled by action client")

	// ErrInvalidRequest rejects a mission request before anything moves.
	ErrInvalidRequest = errors.New("invalid mission request")

	// ErrInvalidPlannerSelection is fatal at mission start.
	ErrInvalidPlannerSelection = errors.New("invalid planner selection")

	// ErrMissionInProgress rejects a request while another mission runs.
	ErrMissionInProgress = errors.New("a mission is already in progress")

	// ErrNoFix is returned when no reference fix can be obtained.
	ErrNoFix = errors.New("no GPS fix available")
)

// IsLegFailure reports whether err is a per-leg failure that must not abort the mission.
func IsLegFailure(err error) bool {
	return errors.Is(err, ErrLegTimedOut) || errors.Is(err, ErrLegSearchExhausted)
}
