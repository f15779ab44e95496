package mission

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient/navtest"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

func TestSingleGPSLegMission(t *testing.T) {
	target := geo.LatLng{Lat: 1.0, Lon: 1.0}
	tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, testTunables())
	h.exec.fixes = fixFunc(func() (geo.LatLng, bool) { return geo.Offset(target, -20, 0), true })

	res := h.run(core.Leg{Name: "A", Kind: core.GPSPoint{}, Target: target})

	if res != (core.Result{Outcome: core.OutcomeSucceeded, Message: core.MessageSucceeded}) {
		t.Errorf("result = %+v", res)
	}
	calls := tr.CallsFor(navclient.ActionFollowWaypoints)
	if len(calls) != 1 || destination(calls[0]) != target {
		t.Fatalf("follow path goals = %+v, want one goal to %v", calls, target)
	}
	if !h.feedback.has("A", core.SeveritySuccess, "Navigated to GPS waypoint") {
		t.Error("missing arrival feedback")
	}
	if !h.feedback.has(core.LegEnd, core.SeverityInfo, "Autonomy task execution completed") {
		t.Error("missing completion feedback")
	}
	legs := h.mc.Legs()
	if len(legs) != 1 || legs[0].Outcome != LegSucceeded {
		t.Errorf("leg results = %+v", legs)
	}
}

func TestGPSOnlyMissionFollowsPlannerOrder(t *testing.T) {
	legs := []core.Leg{
		gpsLeg("far", 120, 0),
		gpsLeg("near", 10, 0),
		gpsLeg("mid", 0, 60),
	}

	for _, name := range []string{"none", "greedy", "brute"} {
		t.Run(name, func(t *testing.T) {
			tun := testTunables()
			tun.OrderPlanner = name

			tr := &navtest.Transport{Script: navtest.SucceedAfter(2)}
			h := newHarness(t, tr, tun)

			if res := h.run(legs...); res.Outcome != core.OutcomeSucceeded {
				t.Fatalf("outcome = %v", res.Outcome)
			}

			order, _ := planner.Order(name)
			want := order(legs, home)
			got := destinations(tr.CallsFor(navclient.ActionFollowWaypoints))
			if len(got) != len(want) {
				t.Fatalf("follow path goals = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i].Target {
					t.Errorf("goal %d went to %v, want %s at %v", i, got[i], want[i].Name, want[i].Target)
				}
			}

			if n := len(tr.CallsFor(navclient.ActionSpin)); n != 0 {
				t.Errorf("spin goals = %d, want 0", n)
			}
			if calls := h.detector.Calls(); len(calls) != 0 {
				t.Errorf("detector toggles = %v, want none", calls)
			}
			if got := h.mc.State().Order; len(got) != len(legs) || got[0] != want[0].Name {
				t.Errorf("recorded order = %v", got)
			}
		})
	}
}

func TestArrivalSignaling(t *testing.T) {
	tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, testTunables())

	h.run(gpsLeg("A", 10, 0), gpsLeg("B", 20, 0))

	want := []core.VehicleMode{
		core.ModeSeeking,
		core.ModeArrival, core.ModeSeeking,
		core.ModeArrival, core.ModeSeeking,
		core.ModeIdle,
	}
	got := h.vehicle.Modes()
	if len(got) != len(want) {
		t.Fatalf("modes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("modes = %v, want %v", got, want)
			break
		}
	}
	if n := h.feedback.count("Flashing LED to indicate arrival"); n != 2 {
		t.Errorf("arrival feedback lines = %d, want 2", n)
	}
}

func TestCancelAbortsMission(t *testing.T) {
	target := geo.Offset(home, 0, 40)
	found := geo.Offset(target, 2, 2)

	tests := []struct {
		name string
		legs []core.Leg
		// cancelAt reports whether the task client cancels while c is polled for the polls-th time.
		cancelAt func(c navtest.Call, polls int) bool
		// detectAt reports whether the target shows up while c is polled for the polls-th time.
		detectAt func(c navtest.Call, polls int) bool
	}{
		{
			name:     "first approach",
			legs:     []core.Leg{gpsLeg("A", 0, 40)},
			cancelAt: func(c navtest.Call, polls int) bool { return c.Index == 0 && polls == 3 },
		},
		{
			name:     "second leg",
			legs:     []core.Leg{gpsLeg("A", 0, 40), gpsLeg("B", 40, 0)},
			cancelAt: func(c navtest.Call, polls int) bool { return c.Index == 1 && polls == 2 },
		},
		{
			name: "spin search",
			legs: []core.Leg{markerLeg("post", 4, 0, 40)},
			cancelAt: func(c navtest.Call, polls int) bool {
				return c.Goal.Action == navclient.ActionSpin && c.Index == 2 && polls == 2
			},
		},
		{
			name: "hex search",
			legs: []core.Leg{markerLeg("post", 4, 0, 40)},
			cancelAt: func(c navtest.Call, polls int) bool {
				return c.Goal.Action == navclient.ActionFollowWaypoints && destination(c) == hexPoint(target, 1) && polls == 2
			},
		},
		{
			name:     "refinement",
			legs:     []core.Leg{markerLeg("post", 4, 0, 40)},
			detectAt: func(c navtest.Call, polls int) bool { return c.Index == 0 && polls == 2 },
			cancelAt: func(c navtest.Call, polls int) bool { return c.Index == 1 && polls == 2 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *harness
			var canceledGoal string
			tr := &navtest.Transport{
				Script: func(c navtest.Call, polls int) navclient.Status {
					if tt.detectAt != nil && tt.detectAt(c, polls) {
						h.detect(found)
					}
					if canceledGoal == "" && tt.cancelAt(c, polls) {
						canceledGoal = c.ID
						h.mc.RequestCancel()
						return navclient.StatusPending
					}
					return navtest.SucceedAfter(4)(c, polls)
				},
			}
			h = newHarness(t, tr, testTunables())

			res := h.run(tt.legs...)

			if res != (core.Result{Outcome: core.OutcomeAborted, Message: core.MessageAborted}) {
				t.Errorf("result = %+v", res)
			}
			if canceledGoal == "" {
				t.Fatal("cancel point was never reached")
			}

			perGoal := map[string]int{}
			for _, id := range tr.Cancels() {
				perGoal[id]++
			}
			if perGoal[canceledGoal] != 1 {
				t.Errorf("active goal received %d cancel calls, want 1", perGoal[canceledGoal])
			}
			for id, n := range perGoal {
				if n > 1 {
					t.Errorf("goal %s received %d cancel calls", id, n)
				}
			}

			calls := tr.Calls()
			if last := calls[len(calls)-1]; last.ID != canceledGoal {
				t.Errorf("goal %s was submitted after the cancel", last.ID)
			}

			if n := h.vehicle.count(core.ModeIdle); n != 1 {
				t.Errorf("idle triggers = %d, want 1", n)
			}
			if modes := h.vehicle.Modes(); modes[len(modes)-1] != core.ModeIdle {
				t.Errorf("last mode = %v, want idle", modes[len(modes)-1])
			}
			if n := h.vehicle.count(core.ModeArrival); n != len(tt.legs)-1 {
				t.Errorf("arrival triggers = %d, want %d", n, len(tt.legs)-1)
			}
			if !h.feedback.hasSeverity(core.SeverityFatal, core.ErrMissionCanceled.Error()) {
				t.Error("missing fatal cancellation feedback")
			}
			legs := h.mc.Legs()
			if last := legs[len(legs)-1]; last.Outcome != LegCanceled {
				t.Errorf("last leg outcome = %v, want canceled", last.Outcome)
			}
		})
	}
}

func TestCancelWhileWaitingForFix(t *testing.T) {
	tr := &navtest.Transport{}
	h := newHarness(t, tr, testTunables())

	calls := 0
	h.exec.fixes = fixFunc(func() (geo.LatLng, bool) {
		calls++
		if calls == 3 {
			h.mc.RequestCancel()
		}
		return geo.LatLng{}, false
	})

	res := h.run(gpsLeg("A", 10, 0))

	if res.Outcome != core.OutcomeAborted {
		t.Errorf("outcome = %v, want Aborted", res.Outcome)
	}
	if n := len(tr.Calls()); n != 0 {
		t.Errorf("goals submitted = %d, want 0", n)
	}
	if n := h.feedback.count("Waiting on a GPS fix..."); n != 3 {
		t.Errorf("fix wait lines = %d, want 3", n)
	}
	if n := h.vehicle.count(core.ModeIdle); n != 1 {
		t.Errorf("idle triggers = %d, want 1", n)
	}
}

func TestFixWaitBacksOff(t *testing.T) {
	tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, testTunables())

	calls := 0
	h.exec.fixes = fixFunc(func() (geo.LatLng, bool) {
		calls++
		return home, calls > 6
	})

	start := h.clk.Now()
	if res := h.run(gpsLeg("A", 10, 0)); res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v", res.Outcome)
	}

	// 1s, 1.5s, 2.25s, 3.375s, then capped at 5s twice.
	want := time.Second + 1500*time.Millisecond + 2250*time.Millisecond + 3375*time.Millisecond + 10*time.Second
	if n := h.feedback.count("Waiting on a GPS fix..."); n != 6 {
		t.Errorf("fix wait lines = %d, want 6", n)
	}
	if elapsed := h.clk.Since(start); elapsed < want {
		t.Errorf("elapsed %v, want at least %v", elapsed, want)
	}
}

func TestWaitsForNavigator(t *testing.T) {
	tr := &navtest.Transport{Script: navtest.SucceedAfter(1), InactivePolls: 2}
	tun := testTunables()
	h := newHarness(t, tr, tun)

	start := h.clk.Now()
	if res := h.run(gpsLeg("A", 10, 0)); res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if elapsed := h.clk.Since(start); elapsed < 2*tun.NavActiveInterval {
		t.Errorf("elapsed %v, want at least %v", elapsed, 2*tun.NavActiveInterval)
	}
}

func TestInvalidPlannerAbortsMission(t *testing.T) {
	tun := testTunables()
	tun.OrderPlanner = "terrain"

	tr := &navtest.Transport{}
	h := newHarness(t, tr, tun)

	res := h.run(gpsLeg("A", 10, 0))

	if res.Outcome != core.OutcomeAborted {
		t.Errorf("outcome = %v, want Aborted", res.Outcome)
	}
	if !h.feedback.hasSeverity(core.SeverityFatal, core.ErrInvalidPlannerSelection.Error()) {
		t.Error("missing fatal planner feedback")
	}
	if n := len(tr.Calls()); n != 0 {
		t.Errorf("goals submitted = %d, want 0", n)
	}
	if n := h.vehicle.count(core.ModeIdle); n != 1 {
		t.Errorf("idle triggers = %d, want 1", n)
	}
}

func TestLegTimeoutContinuesMission(t *testing.T) {
	var first string
	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			if c.Index == 0 {
				first = c.ID
				return navclient.StatusPending
			}
			return navtest.SucceedAfter(2)(c, polls)
		},
	}
	tun := testTunables()
	h := newHarness(t, tr, tun)

	res := h.run(gpsLeg("A", 0, 40), gpsLeg("B", 40, 0))

	if res.Outcome != core.OutcomeSucceeded {
		t.Errorf("outcome = %v, want Succeeded", res.Outcome)
	}
	if cancels := tr.Cancels(); len(cancels) != 1 || cancels[0] != first {
		t.Errorf("cancels = %v, want only the timed-out goal %s", cancels, first)
	}
	if !h.feedback.has("A", core.SeverityError, "GPS navigation timed out") {
		t.Error("missing timeout feedback")
	}

	legs := h.mc.Legs()
	if len(legs) != 2 || legs[0].Outcome != LegTimedOut || legs[1].Outcome != LegSucceeded {
		t.Fatalf("leg results = %+v", legs)
	}
	if d := legs[0].Finished.Sub(legs[0].Started); d < tun.GPSNavTimeout {
		t.Errorf("timed-out leg lasted %v, want at least %v", d, tun.GPSNavTimeout)
	}
	if n := h.vehicle.count(core.ModeArrival); n != 2 {
		t.Errorf("arrival triggers = %d, want 2", n)
	}
}

func TestSearchLegTimeoutSkipsSearch(t *testing.T) {
	tr := &navtest.Transport{Script: func(navtest.Call, int) navclient.Status { return navclient.StatusPending }}
	h := newHarness(t, tr, testTunables())

	res := h.run(markerLeg("post", 3, 0, 40))

	if res.Outcome != core.OutcomeSucceeded {
		t.Errorf("outcome = %v, want Succeeded", res.Outcome)
	}
	if n := len(tr.CallsFor(navclient.ActionSpin)); n != 0 {
		t.Errorf("spin goals = %d, want 0", n)
	}
	if legs := h.mc.Legs(); legs[0].Outcome != LegTimedOut {
		t.Errorf("leg outcome = %v, want timed_out", legs[0].Outcome)
	}
}

func TestSearchExhaustedMission(t *testing.T) {
	tun := testTunables()
	tun.SpinStops = 4

	tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, tun)
	leg := markerLeg("post", 7, 0, 40)

	res := h.run(leg)

	if res != (core.Result{Outcome: core.OutcomeSucceeded, Message: core.MessageSucceeded}) {
		t.Errorf("result = %+v", res)
	}

	paths := destinations(tr.CallsFor(navclient.ActionFollowWaypoints))
	if len(paths) != 1+len(HexPattern) {
		t.Fatalf("follow path goals = %d, want %d", len(paths), 1+len(HexPattern))
	}
	if paths[0] != leg.Target {
		t.Errorf("approach went to %v, want %v", paths[0], leg.Target)
	}
	for i := range HexPattern {
		if paths[i+1] != hexPoint(leg.Target, i) {
			t.Errorf("hex goal %d went to %v, want %v", i+1, paths[i+1], hexPoint(leg.Target, i))
		}
	}

	spins := tr.CallsFor(navclient.ActionSpin)
	if want := 3 * (1 + len(HexPattern)); len(spins) != want {
		t.Errorf("spin goals = %d, want %d", len(spins), want)
	}
	for _, s := range spins {
		if math.Abs(s.Goal.TargetYaw-math.Pi/2) > 1e-9 || s.Goal.TimeAllowance != tun.SpinTimeAllowance {
			t.Errorf("spin goal = %+v", s.Goal)
			break
		}
	}

	if !h.feedback.has("post", core.SeverityError, "Could not find the aruco tag") {
		t.Error("missing search failure feedback")
	}
	if !h.feedback.has("post", core.SeverityInfo, "Hex search completed") {
		t.Error("missing hex completion feedback")
	}
	if !h.feedback.has("post", core.SeverityInfo, "Spin search 3 completed (hex 12)") {
		t.Error("missing spin feedback for the last hex point")
	}
	if legs := h.mc.Legs(); len(legs) != 1 || legs[0].Outcome != LegSearchExhausted {
		t.Errorf("leg results = %+v", legs)
	}
	if n := len(tr.Cancels()); n != 0 {
		t.Errorf("cancels = %d, want 0", n)
	}
	if n := h.vehicle.count(core.ModeArrival); n != 1 {
		t.Errorf("arrival triggers = %d, want 1", n)
	}
}

func TestHexSearchStopsAtFirstHit(t *testing.T) {
	leg := markerLeg("post", 7, 0, 40)
	hit := 4
	found := geo.Offset(hexPoint(leg.Target, hit), 1, 1)

	var h *harness
	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			if c.Goal.Action == navclient.ActionFollowWaypoints && destination(c) == hexPoint(leg.Target, hit) && polls == 2 {
				h.detect(found)
			}
			return navtest.SucceedAfter(3)(c, polls)
		},
	}
	h = newHarness(t, tr, testTunables())

	if res := h.run(leg); res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v", res.Outcome)
	}

	paths := destinations(tr.CallsFor(navclient.ActionFollowWaypoints))
	// approach, hex 1..5, then the refinement pass toward the detection.
	if len(paths) != 1+hit+1+1 {
		t.Fatalf("follow path goals = %v", paths)
	}
	for i := 0; i <= hit; i++ {
		if paths[i+1] != hexPoint(leg.Target, i) {
			t.Errorf("hex goal %d went to %v, want %v", i+1, paths[i+1], hexPoint(leg.Target, i))
		}
	}
	if paths[len(paths)-1] != found {
		t.Errorf("refinement went to %v, want %v", paths[len(paths)-1], found)
	}
	spinsPerSearch := h.exec.Tunables().SpinStops - 1
	if got, want := len(tr.CallsFor(navclient.ActionSpin)), spinsPerSearch*(1+hit); got != want {
		t.Errorf("spin goals = %d, want %d", got, want)
	}
	if !h.feedback.has("post", core.SeverityInfo, "Found the aruco tag!") {
		t.Error("missing found feedback")
	}
	if !h.feedback.has("post", core.SeveritySuccess, "Found and navigated to aruco tag") {
		t.Error("missing success feedback")
	}
}

func TestSpinSearchStopsAtHit(t *testing.T) {
	leg := markerLeg("post", 7, 0, 40)
	found := geo.Offset(leg.Target, 3, 0)

	var h *harness
	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			if c.Goal.Action == navclient.ActionSpin && c.Index == 2 && polls == 2 {
				h.detect(found)
			}
			return navtest.SucceedAfter(3)(c, polls)
		},
	}
	h = newHarness(t, tr, testTunables())

	if res := h.run(leg); res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v", res.Outcome)
	}

	if n := len(tr.CallsFor(navclient.ActionSpin)); n != 2 {
		t.Errorf("spin goals = %d, want 2", n)
	}
	if cancels := tr.Cancels(); len(cancels) != 1 || cancels[0] != tr.Calls()[2].ID {
		t.Errorf("cancels = %v, want the second spin goal", cancels)
	}
	paths := destinations(tr.CallsFor(navclient.ActionFollowWaypoints))
	if len(paths) != 2 || paths[1] != found {
		t.Errorf("follow path goals = %v, want approach and refinement", paths)
	}
}

func TestRefinementFollowsImprovingPoses(t *testing.T) {
	leg := markerLeg("post", 9, 0, 40)
	p1 := geo.Offset(leg.Target, 3, 3)
	p2 := geo.Offset(p1, 5, 0)
	p3 := geo.Offset(p2, 0, 3)
	jitter := geo.Offset(p3, 0.1, 0)

	var h *harness
	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			switch {
			case c.Index == 0 && polls == 2:
				h.detect(p1)
			case c.Index == 1 && polls == 2:
				h.detect(p2)
			case c.Index == 2 && polls == 2:
				h.detect(p3)
			case c.Index == 3 && polls == 2:
				h.detect(jitter)
			case c.Index == 3 && polls == 4:
				return navclient.StatusSucceeded
			}
			return navclient.StatusPending
		},
	}
	h = newHarness(t, tr, testTunables())

	if res := h.run(leg); res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v", res.Outcome)
	}

	want := []geo.LatLng{leg.Target, p1, p2, p3}
	got := destinations(tr.CallsFor(navclient.ActionFollowWaypoints))
	if len(got) != len(want) {
		t.Fatalf("follow path goals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("goal %d went to %v, want %v", i, got[i], want[i])
		}
	}

	calls := tr.Calls()
	cancels := tr.Cancels()
	if len(cancels) != 3 || cancels[0] != calls[0].ID || cancels[1] != calls[1].ID || cancels[2] != calls[2].ID {
		t.Errorf("cancels = %v, want the first three goals", cancels)
	}
	if n := h.feedback.count("Improved GPS location found (aruco tag)"); n != 2 {
		t.Errorf("improvement lines = %d, want 2", n)
	}
	if n := len(tr.CallsFor(navclient.ActionSpin)); n != 0 {
		t.Errorf("spin goals = %d, want 0", n)
	}
	if !h.feedback.has("post", core.SeveritySuccess, "Found and navigated to aruco tag") {
		t.Error("missing success feedback")
	}
}

func TestObjectLegTogglesDetector(t *testing.T) {
	leg := core.Leg{Name: "mallet", Kind: core.ObjectSearch{Class: "mallet", Label: "Class ID: 0"}, Target: geo.Offset(home, 20, 0)}

	tests := []struct {
		name   string
		cancel bool
	}{
		{"found", false},
		{"canceled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *harness
			tr := &navtest.Transport{
				Script: func(c navtest.Call, polls int) navclient.Status {
					if c.Index == 0 && polls == 1 {
						if tt.cancel {
							h.mc.RequestCancel()
						} else {
							h.detect(leg.Target)
						}
					}
					return navtest.SucceedAfter(2)(c, polls)
				},
			}
			h = newHarness(t, tr, testTunables())

			h.run(leg)

			calls := h.detector.Calls()
			if len(calls) != 2 || !calls[0] || calls[1] {
				t.Errorf("detector toggles = %v, want [true false]", calls)
			}
		})
	}
}

func TestSetTunablesAppliesToNextMission(t *testing.T) {
	tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, testTunables())

	next := testTunables()
	next.OrderPlanner = "brute"
	h.exec.SetTunables(next)

	if got := h.exec.Tunables().OrderPlanner; got != "brute" {
		t.Errorf("OrderPlanner = %q, want brute", got)
	}
	h.run(gpsLeg("A", 10, 0))
	if !h.feedback.has(core.LegStart, core.SeverityInfo, "Using order planner: brute and path planner: basic") {
		t.Error("mission did not use the replaced tunables")
	}
}

func TestRunHonorsProcessShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			if polls == 2 {
				cancel()
			}
			return navclient.StatusPending
		},
	}
	h := newHarness(t, tr, testTunables())

	res := h.exec.Run(ctx, h.mc, []core.Leg{gpsLeg("A", 10, 0)})

	if res.Outcome != core.OutcomeAborted {
		t.Errorf("outcome = %v, want Aborted", res.Outcome)
	}
	if n := len(tr.Cancels()); n != 1 {
		t.Errorf("cancels = %d, want 1", n)
	}
	if n := h.vehicle.count(core.ModeIdle); n != 1 {
		t.Errorf("idle triggers = %d, want 1", n)
	}
}

func TestLostAcknowledgementIsResent(t *testing.T) {
	tr := &navtest.Transport{DropAcks: 1, Script: navtest.SucceedAfter(1)}
	h := newHarness(t, tr, testTunables())

	res := h.run(gpsLeg("A", 10, 0), gpsLeg("B", 20, 0))

	if res.Outcome != core.OutcomeSucceeded {
		t.Fatalf("outcome = %v, want Succeeded", res.Outcome)
	}
	if n := len(tr.CallsFor(navclient.ActionFollowWaypoints)); n != 2 {
		t.Errorf("accepted follow path goals = %d, want 2", n)
	}
	dropped := tr.Dropped()
	if cancels := tr.Cancels(); len(dropped) != 1 || len(cancels) != 1 || cancels[0] != dropped[0] {
		t.Errorf("cancels = %v, want only the unacknowledged goal %v", cancels, dropped)
	}
	legs := h.mc.Legs()
	if len(legs) != 2 || legs[0].Outcome != LegSucceeded || legs[1].Outcome != LegSucceeded {
		t.Errorf("leg results = %+v", legs)
	}
}

func TestAbortedGPSLegIsRecordedFailed(t *testing.T) {
	tr := &navtest.Transport{
		Script: func(c navtest.Call, polls int) navclient.Status {
			if c.Index == 0 {
				return navclient.StatusAborted
			}
			return navclient.StatusSucceeded
		},
	}
	h := newHarness(t, tr, testTunables())

	failed := metrics.LegsTotal.WithLabelValues("gps", LegFailed)
	succeeded := metrics.LegsTotal.WithLabelValues("gps", LegSucceeded)
	failedBefore, succeededBefore := testutil.ToFloat64(failed), testutil.ToFloat64(succeeded)

	res := h.run(gpsLeg("A", 10, 0), gpsLeg("B", 20, 0))

	if res.Outcome != core.OutcomeSucceeded {
		t.Errorf("outcome = %v, want Succeeded", res.Outcome)
	}
	if !h.feedback.has("A", core.SeverityError, "GPS navigation failed") {
		t.Error("missing navigation failure feedback")
	}
	if !h.feedback.has("A", core.SeveritySuccess, "Navigated to GPS waypoint") {
		t.Error("missing arrival feedback")
	}
	legs := h.mc.Legs()
	if len(legs) != 2 || legs[0].Outcome != LegFailed || legs[1].Outcome != LegSucceeded {
		t.Fatalf("leg results = %+v", legs)
	}
	if d := testutil.ToFloat64(failed) - failedBefore; d != 1 {
		t.Errorf("failed gps legs counted = %v, want 1", d)
	}
	if d := testutil.ToFloat64(succeeded) - succeededBefore; d != 1 {
		t.Errorf("succeeded gps legs counted = %v, want 1", d)
	}
}
