package planner

import (
	"math"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// OrderFunc permutes legs into execution order starting from ref. It never mutates legs.
type OrderFunc func(legs []core.Leg, ref geo.LatLng) []core.Leg

// bruteLimit is the largest mission ordered exhaustively; larger missions are ordered greedily.
const bruteLimit = 9

// NoOrder keeps the request order.
func NoOrder(legs []core.Leg, _ geo.LatLng) []core.Leg {
	return append([]core.Leg(nil), legs...)
}

// GreedyOrder repeatedly visits the nearest remaining leg.
func GreedyOrder(legs []core.Leg, ref geo.LatLng) []core.Leg {
	remaining := append([]core.Leg(nil), legs...)
	out := make([]core.Leg, 0, len(legs))

	pos := ref
	for len(remaining) > 0 {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if geo.Distance(pos, remaining[i].Target) < geo.Distance(pos, remaining[best].Target) {
				best = i
			}
		}
		out = append(out, remaining[best])
		pos = remaining[best].Target
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

// BruteOrder returns the order with the shortest total great-circle distance from ref.
// Ties keep the first permutation found.
func BruteOrder(legs []core.Leg, ref geo.LatLng) []core.Leg {
	if len(legs) > bruteLimit {
		return GreedyOrder(legs, ref)
	}

	n := len(legs)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := append([]int(nil), perm...)
	bestCost := pathCost(legs, perm, ref)

	// Heap's algorithm, iterative form.
	c := make([]int, n)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[c[i]], perm[i] = perm[i], perm[c[i]]
			}
			if cost := pathCost(legs, perm, ref); cost < bestCost {
				bestCost = cost
				copy(best, perm)
			}
			c[i]++
			i = 0
			continue
		}
		c[i] = 0
		i++
	}

	out := make([]core.Leg, n)
	for i, idx := range best {
		out[i] = legs[idx]
	}
	return out
}

func pathCost(legs []core.Leg, perm []int, ref geo.LatLng) float64 {
	cost := 0.0
	pos := ref
	for _, idx := range perm {
		cost += geo.Distance(pos, legs[idx].Target)
		pos = legs[idx].Target
	}
	if math.IsNaN(cost) {
		return math.Inf(1)
	}
	return cost
}
