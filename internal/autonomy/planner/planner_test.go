package planner

import (
	"errors"
	"testing"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

var ref = geo.LatLng{Lat: 38.0, Lon: -110.0}

func leg(name string, east, north float64) core.Leg {
	return core.Leg{Name: name, Kind: core.GPSPoint{}, Target: geo.Offset(ref, east, north)}
}

func legNames(legs []core.Leg) []string {
	out := make([]string, len(legs))
	for i, l := range legs {
		out[i] = l.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOrderPlanners(t *testing.T) {
	// Far, near and middle along one line.
	legs := []core.Leg{
		leg("far", 300, 0),
		leg("near", 10, 0),
		leg("mid", 150, 0),
	}

	tests := []struct {
		name    string
		planner string
		want    []string
	}{
		{"none keeps the request order", "none", []string{"far", "near", "mid"}},
		{"greedy visits the nearest first", "greedy", []string{"near", "mid", "far"}},
		{"brute finds the shortest tour", "brute", []string{"near", "mid", "far"}},
		{"legacy name", "greedyOrderPlanner", []string{"near", "mid", "far"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := Order(tt.planner)
			if err != nil {
				t.Fatalf("Order(%q) error = %v", tt.planner, err)
			}
			got := legNames(order(legs, ref))
			if !equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			if legNames(legs)[0] != "far" {
				t.Error("input slice was mutated")
			}
		})
	}
}

func TestBruteBeatsGreedy(t *testing.T) {
	// Greedy takes "a" first and then has to double back past the start for "b".
	legs := []core.Leg{
		leg("a", 10, 0),
		leg("b", -30, 0),
		leg("c", 45, 0),
	}

	total := func(order []core.Leg) float64 {
		d, pos := 0.0, ref
		for _, l := range order {
			d += geo.Distance(pos, l.Target)
			pos = l.Target
		}
		return d
	}

	greedy := total(GreedyOrder(legs, ref))
	brute := total(BruteOrder(legs, ref))
	if brute >= greedy {
		t.Errorf("brute total %v is not shorter than greedy total %v", brute, greedy)
	}
	if got := legNames(BruteOrder(legs, ref)); !equal(got, []string{"b", "a", "c"}) {
		t.Errorf("brute order = %v", got)
	}
}

func TestOrderIsPermutation(t *testing.T) {
	legs := []core.Leg{leg("1", 5, 5), leg("2", -30, 2), leg("3", 7, -80), leg("4", 60, 60), leg("5", 0, 1)}
	for _, name := range []string{"none", "greedy", "brute"} {
		order, _ := Order(name)
		got := order(legs, ref)
		seen := map[string]int{}
		for _, l := range got {
			seen[l.Name]++
		}
		if len(got) != len(legs) || len(seen) != len(legs) {
			t.Errorf("%s: %v is not a permutation of the request", name, legNames(got))
		}
	}
}

func TestBasicPath(t *testing.T) {
	to := geo.Offset(ref, 0, 95)

	tests := []struct {
		name       string
		maxSegment float64
		wantPoints int
	}{
		{"subdivided", 18, 6},
		{"uneven", 25, 4},
		{"short hop", 200, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := BasicPath(ref, to, tt.maxSegment)
			if len(path) != tt.wantPoints {
				t.Fatalf("len(path) = %d, want %d", len(path), tt.wantPoints)
			}
			if path[len(path)-1] != to {
				t.Errorf("last waypoint = %v, want the destination", path[len(path)-1])
			}
			prev := ref
			for i, p := range path {
				if d := geo.Distance(prev, p); d > tt.maxSegment+1e-6 {
					t.Errorf("segment %d is %v m, longer than %v", i, d, tt.maxSegment)
				}
				prev = p
			}
		})
	}
}

func TestUnknownPlanner(t *testing.T) {
	if _, err := Order("terrain"); !errors.Is(err, core.ErrInvalidPlannerSelection) {
		t.Errorf("Order(terrain) error = %v, want ErrInvalidPlannerSelection", err)
	}
	if _, err := Path("terrain"); !errors.Is(err, core.ErrInvalidPlannerSelection) {
		t.Errorf("Path(terrain) error = %v, want ErrInvalidPlannerSelection", err)
	}
	if err := Validate("greedy", "basic"); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
