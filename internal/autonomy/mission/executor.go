// Package mission executes missions: it orders the legs, drives each one through navigation, search
// and refinement, and always returns the vehicle to idle when the mission ends.
package mission

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// fixWaitCap bounds the backoff between checks for the first GPS fix.
const fixWaitCap = 5 * time.Second

// Deps are the collaborators of an Executor. Markers may be nil.
type Deps struct {
	Nav      *navclient.Client
	Vehicle  core.Vehicle
	Detector core.Detector
	Markers  core.MarkerSink
	Fixes    core.FixSource
	Cache    *perception.Cache
}

// Executor runs one mission at a time on the calling goroutine.
type Executor struct {
	nav      *navclient.Client
	vehicle  core.Vehicle
	detector core.Detector
	markers  core.MarkerSink
	fixes    core.FixSource
	cache    *perception.Cache

	tunables atomic.Pointer[Tunables]
	clock    clock.Clock
	logger   log.Logger
}

// Option configures an Executor.
type Option func(*Executor)

func WithClock(c clock.Clock) Option { return func(e *Executor) { e.clock = c } }

func WithLogger(l log.Logger) Option { return func(e *Executor) { e.logger = l } }

// NewExecutor returns an Executor using tun until SetTunables replaces them.
func NewExecutor(deps Deps, tun Tunables, opts ...Option) *Executor {
	e := &Executor{
		nav:      deps.Nav,
		vehicle:  deps.Vehicle,
		detector: deps.Detector,
		markers:  deps.Markers,
		fixes:    deps.Fixes,
		cache:    deps.Cache,
		clock:    clock.RealClock{},
		logger:   log.WithName("executor"),
	}
	e.tunables.Store(&tun)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetTunables replaces the tunables used by missions started from now on.
func (e *Executor) SetTunables(t Tunables) {
	e.tunables.Store(&t)
}

// Tunables returns the tunables the next mission will use.
func (e *Executor) Tunables() Tunables {
	return *e.tunables.Load()
}

// Cache returns the perception cache missions bind their legs into.
func (e *Executor) Cache() *perception.Cache {
	return e.cache
}

// ActiveGoal returns the outstanding navigation goal, if any.
func (e *Executor) ActiveGoal() (navclient.GoalState, bool) {
	return e.nav.Active()
}

// Run executes legs and returns the mission result. Leg failures are reported and skipped;
// cancellation and any other error abort the mission. The vehicle is put back into idle exactly once
// before Run returns, whatever the outcome.
func (e *Executor) Run(ctx context.Context, mc *MissionContext, legs []core.Leg) core.Result {
	tun := e.Tunables()
	ctx = log.IntoContext(ctx, e.logger.WithValues("mission", mc.ID))

	metrics.MissionActive.Set(1)
	defer metrics.MissionActive.Set(0)

	e.trigger(ctx, core.ModeSeeking)
	defer e.trigger(context.WithoutCancel(ctx), core.ModeIdle)

	if err := e.execute(ctx, mc, legs, tun); err != nil {
		mc.fatal(err.Error())
		metrics.MissionsTotal.WithLabelValues(string(core.OutcomeAborted)).Inc()
		return core.Result{Outcome: core.OutcomeAborted, Message: core.MessageAborted}
	}

	metrics.MissionsTotal.WithLabelValues(string(core.OutcomeSucceeded)).Inc()
	return core.Result{Outcome: core.OutcomeSucceeded, Message: core.MessageSucceeded}
}

func (e *Executor) execute(ctx context.Context, mc *MissionContext, legs []core.Leg, tun Tunables) error {
	mc.setLabel(core.LegStart)
	mc.info("Autonomy task execution started")

	ref, err := e.waitForFix(ctx, mc, tun)
	if err != nil {
		return err
	}

	mc.info(fmt.Sprintf("Using order planner: %s and path planner: %s", tun.OrderPlanner, tun.PathPlanner))

	order, err := planner.Order(tun.OrderPlanner)
	if err != nil {
		return err
	}
	path, err := planner.Path(tun.PathPlanner)
	if err != nil {
		return err
	}

	mission := core.OrderedMission{Legs: order(legs, ref), Reference: ref}
	mc.setOrder(mission.Names())
	mc.info("Determined best leg order: [" + strings.Join(mission.Names(), ", ") + "]")

	if err := e.waitForNavigator(ctx, mc, tun); err != nil {
		return err
	}

	for _, leg := range mission.Legs {
		err := e.runLeg(ctx, mc, leg, tun, path)
		switch {
		case err == nil:
		case core.IsLegFailure(err):
			log.FromContext(ctx).Info("Leg failed, continuing with the next one", "leg", leg.Name, "reason", err.Error())
		default:
			return err
		}
	}

	mc.setLabel(core.LegEnd)
	mc.info("Autonomy task execution completed")
	return nil
}

// waitForFix blocks until the first GPS fix, backing off from FixWaitInterval up to fixWaitCap.
func (e *Executor) waitForFix(ctx context.Context, mc *MissionContext, tun Tunables) (geo.LatLng, error) {
	backoff := wait.Backoff{
		Duration: tun.FixWaitInterval,
		Factor:   1.5,
		Steps:    math.MaxInt32,
		Cap:      fixWaitCap,
	}

	for {
		if fix, ok := e.fixes.Fix(); ok {
			return fix, nil
		}

		e.clock.Sleep(backoff.Step())
		mc.warn("Waiting on a GPS fix...")

		if mc.canceled(ctx) {
			return geo.LatLng{}, mc.cancelError(ctx)
		}
	}
}

// waitForNavigator blocks until the navigation subsystem reports itself active.
func (e *Executor) waitForNavigator(ctx context.Context, mc *MissionContext, tun Tunables) error {
	logger := log.FromContext(ctx)
	for attempt := 1; ; attempt++ {
		if mc.canceled(ctx) {
			return mc.cancelError(ctx)
		}

		active, err := e.nav.NavigatorActive(ctx)
		if err != nil {
			logger.Debug("Navigation readiness query failed", "error", err.Error())
		}
		if active {
			logger.Info("Navigation subsystem is ready for use")
			return nil
		}

		logger.Info("Waiting for the navigation subsystem to become active", "attempt", attempt)
		e.clock.Sleep(tun.NavActiveInterval)
	}
}

// trigger switches the vehicle mode. Failures are logged; the calls are fire-and-forget.
func (e *Executor) trigger(ctx context.Context, mode core.VehicleMode) {
	if err := e.vehicle.Trigger(ctx, mode); err != nil {
		log.FromContext(ctx).Error(err, "Failed to trigger vehicle mode", "mode", mode)
	}
}

func (e *Executor) setObjectDetection(ctx context.Context, enabled bool) {
	if err := e.detector.SetObjectDetection(ctx, enabled); err != nil {
		log.FromContext(ctx).Error(err, "Failed to toggle object detection", "enabled", enabled)
	}
}
