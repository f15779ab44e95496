// Package planner holds the leg ordering and path planning strategies, selectable by name.
package planner

import (
	"fmt"
	"sort"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
)

var orderPlanners = map[string]OrderFunc{
	"none":   NoOrder,
	"greedy": GreedyOrder,
	"brute":  BruteOrder,

	// Names used by older mission configs.
	"noOrderPlanner":     NoOrder,
	"greedyOrderPlanner": GreedyOrder,
	"bruteOrderPlanner":  BruteOrder,
}

var pathPlanners = map[string]PathFunc{
	"basic": BasicPath,

	"basicPathPlanner": BasicPath,
}

// Order returns the ordering strategy registered under name.
func Order(name string) (OrderFunc, error) {
	f, ok := orderPlanners[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown order planner %q (known: %v)", core.ErrInvalidPlannerSelection, name, OrderNames())
	}
	return f, nil
}

// Path returns the path planning strategy registered under name.
func Path(name string) (PathFunc, error) {
	f, ok := pathPlanners[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown path planner %q (known: %v)", core.ErrInvalidPlannerSelection, name, PathNames())
	}
	return f, nil
}

// Validate checks both planner names.
func Validate(order, path string) error {
	if _, err := Order(order); err != nil {
		return err
	}
	_, err := Path(path)
	return err
}

func OrderNames() []string { return names(orderPlanners) }

func PathNames() []string { return names(pathPlanners) }

func names[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
