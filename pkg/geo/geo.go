// Package geo holds the geodetic helpers shared by the planners, the search patterns and the frame
// converter. Distances are metres on a spherical Earth, which is accurate to well under a metre over the
// few hundred metres a leg spans.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadius is the mean Earth radius in metres.
const EarthRadius = 6371008.8

// LatLng is a geodetic position in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// String implements fmt.Stringer.
func (p LatLng) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", p.Lat, p.Lon)
}

// Valid reports whether the position is inside the geodetic ranges.
func (p LatLng) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p LatLng) s2() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

func fromS2(ll s2.LatLng) LatLng {
	return LatLng{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b LatLng) float64 {
	return angleToMeters(a.s2().Distance(b.s2()))
}

func angleToMeters(a s1.Angle) float64 {
	return a.Radians() * EarthRadius
}

// Offset returns the position east and north metres away from origin.
func Offset(origin LatLng, east, north float64) LatLng {
	lat := origin.Lat + (north/EarthRadius)*(180/math.Pi)
	lon := origin.Lon + (east/(EarthRadius*math.Cos(origin.Lat*math.Pi/180)))*(180/math.Pi)
	return LatLng{Lat: lat, Lon: normalizeLon(lon)}
}

// ToENU returns the east and north offsets in metres of p relative to origin. It is the inverse of Offset.
func ToENU(origin, p LatLng) (east, north float64) {
	dLon := normalizeLon(p.Lon-origin.Lon) * math.Pi / 180
	dLat := (p.Lat - origin.Lat) * math.Pi / 180
	return dLon * EarthRadius * math.Cos(origin.Lat*math.Pi/180), dLat * EarthRadius
}

// Interpolate returns the point a fraction t of the way along the great circle from a to b.
func Interpolate(a, b LatLng, t float64) LatLng {
	pa := s2.PointFromLatLng(a.s2())
	pb := s2.PointFromLatLng(b.s2())
	return fromS2(s2.LatLngFromPoint(s2.Interpolate(t, pa, pb)))
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
