package mission

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient/navtest"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

var (
	epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	home  = geo.LatLng{Lat: 38.4063, Lon: -110.7918}
)

type recordingVehicle struct {
	mu    sync.Mutex
	modes []core.VehicleMode
}

func (v *recordingVehicle) Trigger(_ context.Context, mode core.VehicleMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.modes = append(v.modes, mode)
	return nil
}

func (v *recordingVehicle) Modes() []core.VehicleMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]core.VehicleMode(nil), v.modes...)
}

func (v *recordingVehicle) count(mode core.VehicleMode) int {
	n := 0
	for _, m := range v.Modes() {
		if m == mode {
			n++
		}
	}
	return n
}

type recordingDetector struct {
	mu    sync.Mutex
	calls []bool
}

func (d *recordingDetector) SetObjectDetection(_ context.Context, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, enabled)
	return nil
}

func (d *recordingDetector) Calls() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.calls...)
}

type recordingMarkers struct {
	mu    sync.Mutex
	kinds []core.MarkerKind
}

func (m *recordingMarkers) PublishWaypoint(_ context.Context, _ geo.LatLng, kind core.MarkerKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	return nil
}

type fixFunc func() (geo.LatLng, bool)

func (f fixFunc) Fix() (geo.LatLng, bool) { return f() }

type feedbackLog struct {
	mu    sync.Mutex
	lines []core.Feedback
}

func (f *feedbackLog) Report(leg string, severity core.Severity, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, core.Feedback{Leg: leg, Severity: severity, Text: text})
}

func (f *feedbackLog) has(leg string, severity core.Severity, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.Leg == leg && l.Severity == severity && l.Text == text {
			return true
		}
	}
	return false
}

func (f *feedbackLog) count(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.lines {
		if l.Text == text {
			n++
		}
	}
	return n
}

func (f *feedbackLog) hasSeverity(severity core.Severity, substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.Severity == severity && strings.Contains(l.Text, substr) {
			return true
		}
	}
	return false
}

func (f *feedbackLog) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, l := range f.lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

type harness struct {
	clk      *testingclock.FakeClock
	tr       *navtest.Transport
	vehicle  *recordingVehicle
	detector *recordingDetector
	markers  *recordingMarkers
	loc      *perception.Localization
	cache    *perception.Cache
	feedback *feedbackLog
	exec     *Executor
	mc       *MissionContext
}

// testTunables keeps the defaults but shortens the timeouts so that timed-out legs need few ticks.
func testTunables() Tunables {
	tun := DefaultTunables()
	tun.OrderPlanner = "none"
	tun.GPSNavTimeout = 10 * time.Second
	tun.HexNavTimeout = 5 * time.Second
	tun.WaitTime = time.Second
	return tun
}

func newHarness(t *testing.T, tr *navtest.Transport, tun Tunables) *harness {
	t.Helper()

	h := &harness{
		clk:      testingclock.NewFakeClock(epoch),
		tr:       tr,
		vehicle:  &recordingVehicle{},
		detector: &recordingDetector{},
		markers:  &recordingMarkers{},
		loc:      &perception.Localization{},
		cache:    perception.NewCache(),
		feedback: &feedbackLog{},
	}
	h.loc.Update(home)

	nav := navclient.New(tr,
		navclient.WithClock(h.clk),
		navclient.WithLogger(log.NewNopLogger()),
	)
	h.exec = NewExecutor(Deps{
		Nav:      nav,
		Vehicle:  h.vehicle,
		Detector: h.detector,
		Markers:  h.markers,
		Fixes:    h.loc,
		Cache:    h.cache,
	}, tun, WithClock(h.clk), WithLogger(log.NewNopLogger()))
	h.mc = NewMissionContext("test-mission", h.cache, h.feedback)

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("feedback:\n%s", h.feedback)
		}
	})
	return h
}

func (h *harness) run(legs ...core.Leg) core.Result {
	return h.exec.Run(context.Background(), h.mc, legs)
}

// detect simulates a sensor handler recording pose for the active leg.
func (h *harness) detect(pose geo.LatLng) {
	if b, ok := h.cache.ActiveLeg(); ok {
		h.cache.Record(b, pose)
	}
}

func destination(c navtest.Call) geo.LatLng {
	return c.Goal.Waypoints[len(c.Goal.Waypoints)-1]
}

func destinations(calls []navtest.Call) []geo.LatLng {
	out := make([]geo.LatLng, len(calls))
	for i, c := range calls {
		out[i] = destination(c)
	}
	return out
}

func gpsLeg(name string, east, north float64) core.Leg {
	return core.Leg{Name: name, Kind: core.GPSPoint{}, Target: geo.Offset(home, east, north)}
}

func markerLeg(name string, tag int, east, north float64) core.Leg {
	return core.Leg{Name: name, Kind: core.MarkerSearch{TagID: tag}, Target: geo.Offset(home, east, north)}
}

func hexPoint(target geo.LatLng, i int) geo.LatLng {
	return geo.Offset(target, HexPattern[i][0], HexPattern[i][1])
}
