package planner

import (
	"math"

	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// PathFunc plans waypoints from one position to another. The last waypoint is always to.
type PathFunc func(from, to geo.LatLng, maxSegment float64) []geo.LatLng

// BasicPath subdivides the great circle from from to to into equal segments no longer than maxSegment.
func BasicPath(from, to geo.LatLng, maxSegment float64) []geo.LatLng {
	d := geo.Distance(from, to)
	if maxSegment <= 0 || d <= maxSegment {
		return []geo.LatLng{to}
	}

	n := int(math.Ceil(d / maxSegment))
	path := make([]geo.LatLng, 0, n)
	for i := 1; i < n; i++ {
		path = append(path, geo.Interpolate(from, to, float64(i)/float64(n)))
	}
	return append(path, to)
}
