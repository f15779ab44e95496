package core

import (
	"fmt"

	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// Kind is the closed set of leg kinds: GPSPoint, MarkerSearch and ObjectSearch.
// Switches over a Kind should end with a default case that panics on an unknown kind.
type Kind interface {
	isKind()

	// String returns the human-readable noun used in feedback ("GPS waypoint", "aruco tag", "object").
	String() string
}

// GPSPoint is a plain waypoint with no search.
type GPSPoint struct{}

// MarkerSearch requires locating the fiducial marker TagID near the target.
type MarkerSearch struct {
	TagID int
}

// ObjectSearch requires locating an object of Class near the target.
// Label is the string the detector publishes for Class.
type ObjectSearch struct {
	Class string
	Label string
}

func (GPSPoint) isKind()     {}
func (MarkerSearch) isKind() {}
func (ObjectSearch) isKind() {}

func (GPSPoint) String() string     { return "GPS waypoint" }
func (MarkerSearch) String() string { return "aruco tag" }
func (ObjectSearch) String() string { return "object" }

// Leg is one waypoint-or-search unit of a mission. It is immutable once accepted.
type Leg struct {
	Name   string
	Kind   Kind
	Target geo.LatLng
}

// NeedsSearch reports whether the leg has a visual target to locate.
func (l Leg) NeedsSearch() bool {
	switch l.Kind.(type) {
	case GPSPoint:
		return false
	case MarkerSearch, ObjectSearch:
		return true
	default:
		panic(fmt.Sprintf("unknown leg kind %T", l.Kind))
	}
}

// KindName returns the wire name of the leg kind.
func (l Leg) KindName() string {
	switch l.Kind.(type) {
	case GPSPoint:
		return "gps"
	case MarkerSearch:
		return "aruco"
	case ObjectSearch:
		return "obj"
	default:
		panic(fmt.Sprintf("unknown leg kind %T", l.Kind))
	}
}

// OrderedMission is the leg sequence produced once by the ordering strategy, together with the fix
// the order was computed from.
type OrderedMission struct {
	Legs      []Leg
	Reference geo.LatLng
}

// Names returns the leg names in execution order.
func (m OrderedMission) Names() []string {
	names := make([]string, len(m.Legs))
	for i, l := range m.Legs {
		names[i] = l.Name
	}
	return names
}
