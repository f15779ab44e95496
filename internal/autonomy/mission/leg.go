package mission

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/planner"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/roverpilot/internal/pkg/util/fsm"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// legRun is one execution of one leg.
type legRun struct {
	e    *Executor
	mc   *MissionContext
	leg  core.Leg
	noun string
	tun  Tunables
	path planner.PathFunc

	found geo.LatLng
	err   error

	// navAborted is set when the server aborted the approach of a leg that arrives regardless.
	navAborted bool
}

// runLeg drives leg through its state machine. It returns nil on arrival, a leg failure
// (core.IsLegFailure) when the mission may go on, and any other error when it must abort.
func (e *Executor) runLeg(ctx context.Context, mc *MissionContext, leg core.Leg, tun Tunables, path planner.PathFunc) error {
	started := e.clock.Now()
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("leg", leg.Name))

	b := mc.bind(leg)
	defer mc.unbind(b)

	r := &legRun{e: e, mc: mc, leg: leg, noun: leg.Kind.String(), tun: tun, path: path}

	if _, ok := leg.Kind.(core.ObjectSearch); ok {
		e.setObjectDetection(ctx, true)
		defer e.setObjectDetection(context.WithoutCancel(ctx), false)
	}

	mc.info("Starting " + r.noun + " leg")

	// Callbacks only report, so transitions must not be cut short by a canceled ctx.
	fctx := context.WithoutCancel(ctx)

	m := newLegMachine(r)
	event, args := EventStart, []any(nil)
	for {
		if err := m.Event(fctx, event, args...); fsmutil.IsRealError(err) {
			return fmt.Errorf("leg %s: %s from %s: %w", leg.Name, event, m.Current(), err)
		}
		if m.Done() {
			break
		}

		next, err := r.step(ctx, m.Current())
		switch {
		case err == nil:
			event, args = next, nil
		case errors.Is(err, core.ErrMissionCanceled):
			r.err = err
			event, args = EventCancel, []any{err}
		default:
			r.err = err
			event, args = EventFail, []any{err}
		}
	}

	outcome := legOutcome(m.Current(), r.err)
	if r.navAborted && outcome == LegSucceeded {
		outcome = LegFailed
	}
	result := LegResult{
		Name:     leg.Name,
		Kind:     leg.KindName(),
		Outcome:  outcome,
		Started:  started,
		Finished: e.clock.Now(),
	}
	if r.err != nil {
		result.Error = r.err.Error()
	}
	mc.recordLeg(result)
	metrics.LegsTotal.WithLabelValues(leg.KindName(), outcome).Inc()
	metrics.LegDuration.WithLabelValues(leg.KindName()).Observe(result.Finished.Sub(started).Seconds())

	switch {
	case m.Current() == StateArrived:
		e.signalArrival(ctx, mc, tun)
		return nil
	case core.IsLegFailure(r.err):
		e.signalArrival(ctx, mc, tun)
		return r.err
	default:
		return r.err
	}
}

// step runs the work of state and returns the event that leaves it.
func (r *legRun) step(ctx context.Context, state string) (string, error) {
	switch state {
	case StateNavigating:
		return r.approach(ctx)
	case StateSearchingSpin:
		pose, ok, err := r.spinSearch(ctx, "")
		return r.searched(pose, ok, err, EventNotFound)
	case StateSearchingHex:
		pose, ok, err := r.hexSearch(ctx)
		return r.searched(pose, ok, err, "")
	case StateRefining:
		return r.refine(ctx)
	default:
		return "", fmt.Errorf("leg %s: no work defined for state %s", r.leg.Name, state)
	}
}

// approach navigates to the leg target, watching for the target on the way when the leg has one.
func (r *legRun) approach(ctx context.Context) (string, error) {
	res, err := r.gpsNav(ctx, navRequest{
		dest:       r.leg.Target,
		timeout:    r.tun.GPSNavTimeout,
		timeoutMsg: "GPS navigation timed out",
		track:      r.leg.NeedsSearch(),
	})
	if err != nil {
		return "", err
	}

	switch {
	case res.outcome == navTimedOut:
		return "", fmt.Errorf("leg %s: %w after %v", r.leg.Name, core.ErrLegTimedOut, r.tun.GPSNavTimeout)
	case !r.leg.NeedsSearch():
		r.navAborted = res.outcome == navFailed
		return EventArrive, nil
	case res.outcome == navFound:
		r.found = res.pose
		return EventFound, nil
	default:
		return EventNotFound, nil
	}
}

func (r *legRun) searched(pose geo.LatLng, ok bool, err error, notFound string) (string, error) {
	switch {
	case err != nil:
		return "", err
	case ok:
		r.found = pose
		return EventFound, nil
	case notFound != "":
		return notFound, nil
	default:
		return "", fmt.Errorf("leg %s: %w", r.leg.Name, core.ErrLegSearchExhausted)
	}
}

// refine navigates to the found pose and restarts toward every improved pose, until a pass ends
// without one.
func (r *legRun) refine(ctx context.Context) (string, error) {
	for {
		res, err := r.gpsNav(ctx, navRequest{
			dest:   r.found,
			src:    " (" + r.noun + ")",
			track:  true,
			refine: true,
		})
		if err != nil {
			return "", err
		}
		if res.outcome != navFound {
			return EventArrive, nil
		}
		r.found = res.pose
	}
}

func legOutcome(state string, err error) string {
	switch {
	case state == StateArrived:
		return LegSucceeded
	case state == StateCanceled:
		return LegCanceled
	case errors.Is(err, core.ErrLegTimedOut):
		return LegTimedOut
	case errors.Is(err, core.ErrLegSearchExhausted):
		return LegSearchExhausted
	default:
		return LegFailed
	}
}

// signalArrival flashes the arrival indication and returns the vehicle to seeking.
func (e *Executor) signalArrival(ctx context.Context, mc *MissionContext, tun Tunables) {
	mc.info("Flashing LED to indicate arrival")
	e.trigger(ctx, core.ModeArrival)
	e.clock.Sleep(tun.WaitTime)
	e.trigger(ctx, core.ModeSeeking)
}
