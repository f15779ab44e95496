package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// Wire names of the leg kinds.
const (
	TypeGPS    = "gps"
	TypeAruco  = "aruco"
	TypeObject = "obj"
)

// LegSpec is one leg as submitted by the task client.
type LegSpec struct {
	Name      string  `json:"name" yaml:"name"`
	Type      string  `json:"type" yaml:"type"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	TagID     int     `json:"tag_id,omitempty" yaml:"tag_id,omitempty"`
	Object    string  `json:"object,omitempty" yaml:"object,omitempty"`
}

// Request is a mission request.
type Request struct {
	Legs []LegSpec `json:"legs" yaml:"legs"`
}

// ParseLegs converts specs into legs. objectLabels maps an object class to the label the detector
// publishes for it. Every error wraps core.ErrInvalidRequest.
func ParseLegs(specs []LegSpec, objectLabels map[string]string) ([]core.Leg, error) {
	legs := make([]core.Leg, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for i, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: leg %d has no name", core.ErrInvalidRequest, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate leg name %q", core.ErrInvalidRequest, name)
		}
		seen[name] = struct{}{}

		target := geo.LatLng{Lat: s.Latitude, Lon: s.Longitude}
		if !target.Valid() {
			return nil, fmt.Errorf("%w: leg %q: coordinates (%v, %v) out of range", core.ErrInvalidRequest, name, s.Latitude, s.Longitude)
		}

		leg := core.Leg{Name: name, Target: target}
		switch s.Type {
		case TypeGPS:
			leg.Kind = core.GPSPoint{}
		case TypeAruco:
			if s.TagID < 0 {
				return nil, fmt.Errorf("%w: leg %q: negative tag id %d", core.ErrInvalidRequest, name, s.TagID)
			}
			leg.Kind = core.MarkerSearch{TagID: s.TagID}
		case TypeObject:
			label, ok := objectLabels[s.Object]
			if !ok {
				return nil, fmt.Errorf("%w: leg %q: unknown object %q (known: %s)",
					core.ErrInvalidRequest, name, s.Object, strings.Join(knownObjects(objectLabels), ", "))
			}
			leg.Kind = core.ObjectSearch{Class: s.Object, Label: label}
		default:
			return nil, fmt.Errorf("%w: leg %q: unknown type %q", core.ErrInvalidRequest, name, s.Type)
		}

		legs = append(legs, leg)
	}

	return legs, nil
}

func knownObjects(labels map[string]string) []string {
	out := make([]string, 0, len(labels))
	for k := range labels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
