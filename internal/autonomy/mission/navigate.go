package mission

import (
	"context"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// navOutcome is how one gps navigation pass ended.
type navOutcome int

const (
	navDone navOutcome = iota
	navCanceled
	navFailed
	navTimedOut
	navFound
)

// navRequest describes one gps navigation pass.
type navRequest struct {
	dest geo.LatLng

	// src is appended to every feedback line of the pass, e.g. " (hex 3)".
	src string

	// timeout is measured from goal submission. Zero disables it.
	timeout    time.Duration
	timeoutMsg string

	// track consults the perception cache on every tick. With refine set, only a pose further than
	// the update threshold from dest ends the pass.
	track  bool
	refine bool
}

type navResult struct {
	outcome navOutcome
	pose    geo.LatLng
}

// gpsNav plans a path to req.dest, submits it and polls it until it ends. Every tick checks, in this
// order, cancellation, the timeout and the perception cache. Cancellation cancels the goal and returns
// ErrMissionCanceled; a timeout or a detection cancels the goal and returns normally.
func (r *legRun) gpsNav(ctx context.Context, req navRequest) (navResult, error) {
	if r.mc.canceled(ctx) {
		return navResult{}, r.mc.cancelError(ctx)
	}

	r.mc.info("Starting GPS navigation" + req.src)

	from, ok := r.e.fixes.Fix()
	if !ok {
		return navResult{}, core.ErrNoFix
	}
	path := r.path(from, req.dest, r.tun.WaypointDistance)
	r.e.publishPath(ctx, path)

	h, err := r.e.nav.SubmitFollowPath(ctx, path)
	if err != nil {
		return navResult{}, err
	}

	for {
		switch r.e.nav.Poll(h) {
		case navclient.Succeeded:
			r.mc.info("GPS navigation completed" + req.src)
			return navResult{outcome: navDone}, nil
		case navclient.Canceled:
			r.mc.warn("GPS navigation canceled" + req.src)
			return navResult{outcome: navCanceled}, nil
		case navclient.Aborted:
			r.mc.fail("GPS navigation failed" + req.src)
			return navResult{outcome: navFailed}, nil
		}

		r.e.clock.Sleep(r.tun.PollInterval)

		if r.mc.canceled(ctx) {
			r.e.cancelGoal(ctx, h)
			return navResult{}, r.mc.cancelError(ctx)
		}

		if req.timeout > 0 && r.e.clock.Since(h.Submitted()) > req.timeout {
			r.mc.fail(req.timeoutMsg)
			r.e.cancelGoal(ctx, h)
			return navResult{outcome: navTimedOut}, nil
		}

		if !req.track {
			continue
		}
		pose, ok := r.e.cache.Lookup(r.leg.Name)
		if !ok {
			continue
		}
		if req.refine {
			if geo.Distance(pose, req.dest) <= r.tun.UpdateThreshold {
				continue
			}
			r.mc.info("Improved GPS location found" + req.src)
		}
		r.e.cancelGoal(ctx, h)
		return navResult{outcome: navFound, pose: pose}, nil
	}
}

// publishPath sends every waypoint to the visualization sink. Failures are logged and ignored.
func (e *Executor) publishPath(ctx context.Context, path []geo.LatLng) {
	if e.markers == nil {
		return
	}
	for i, wp := range path {
		kind := core.MarkerIntermediate
		if i == len(path)-1 {
			kind = core.MarkerGoal
		}
		if err := e.markers.PublishWaypoint(ctx, wp, kind); err != nil {
			log.FromContext(ctx).Debug("Failed to publish waypoint marker", "error", err.Error())
		}
	}
}

// cancelGoal cancels h even when ctx is already done, since the goal must not outlive the mission.
func (e *Executor) cancelGoal(ctx context.Context, h *navclient.GoalHandle) {
	if err := e.nav.Cancel(context.WithoutCancel(ctx), h); err != nil {
		log.FromContext(ctx).Error(err, "Failed to cancel navigation goal", "goal", h.ID())
	}
}
