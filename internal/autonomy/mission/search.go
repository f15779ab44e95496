package mission

import (
	"context"
	"fmt"
	"math"

	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

// HexPattern holds the hex search offsets (east, north) in metres from the leg target, in visiting
// order: an inner ring of six points 9 m out, then an outer ring of six. With a ~5 m sensor range it
// covers a 20 m radius with little overlap.
//
//	        (07)
//	(12) (06) (01) (08)
//	   (05) (00) (02)
//	(11) (04) (03) (09)
//	        (10)
var HexPattern = [12][2]float64{
	{4.5, 7.79},
	{9.0, 0.0},
	{4.5, -7.79},
	{-4.5, -7.79},
	{-9.0, 0.0},
	{-4.5, 7.79},
	{0.0, 15.58},
	{13.5, 7.79},
	{13.5, -7.79},
	{0.0, -15.58},
	{-13.5, -7.79},
	{-13.5, 7.79},
}

// spinSearch rotates in place through spin-stops equal segments, skipping the last one since it
// faces the starting direction again. A detection cancels the running spin and ends the search.
func (r *legRun) spinSearch(ctx context.Context, src string) (geo.LatLng, bool, error) {
	r.mc.info("Starting spin search" + src)

	segment := 2 * math.Pi / float64(r.tun.SpinStops)

	for i := 1; i < r.tun.SpinStops; i++ {
		if r.mc.canceled(ctx) {
			return geo.LatLng{}, false, r.mc.cancelError(ctx)
		}

		h, err := r.e.nav.SubmitSpin(ctx, segment, r.tun.SpinTimeAllowance)
		if err != nil {
			return geo.LatLng{}, false, err
		}

		var result navclient.PollResult
		for result = r.e.nav.Poll(h); result == navclient.Pending; result = r.e.nav.Poll(h) {
			r.e.clock.Sleep(r.tun.PollInterval)

			if r.mc.canceled(ctx) {
				r.e.cancelGoal(ctx, h)
				return geo.LatLng{}, false, r.mc.cancelError(ctx)
			}
			if pose, ok := r.e.cache.Lookup(r.leg.Name); ok {
				r.e.cancelGoal(ctx, h)
				return pose, true, nil
			}
		}

		r.e.clock.Sleep(r.tun.SpinWaitTime)

		switch result {
		case navclient.Succeeded:
			r.mc.info(fmt.Sprintf("Spin search %d completed%s", i, src))
		case navclient.Canceled:
			r.mc.warn(fmt.Sprintf("Spin search %d canceled%s", i, src))
		case navclient.Aborted:
			r.mc.fail(fmt.Sprintf("Spin search %d failed%s", i, src))
		}

		if pose, ok := r.e.cache.Lookup(r.leg.Name); ok {
			return pose, true, nil
		}
	}

	return geo.LatLng{}, false, nil
}

// hexSearch visits every HexPattern point around the leg target once, in order, and spins at each.
// It stops at the first detection.
func (r *legRun) hexSearch(ctx context.Context) (geo.LatLng, bool, error) {
	r.mc.info("Starting hex search")

	for i, off := range HexPattern {
		src := fmt.Sprintf(" (hex %d)", i+1)

		res, err := r.gpsNav(ctx, navRequest{
			dest:       geo.Offset(r.leg.Target, off[0], off[1]),
			src:        src,
			timeout:    r.tun.HexNavTimeout,
			timeoutMsg: "Hex search timed out",
			track:      true,
		})
		if err != nil {
			return geo.LatLng{}, false, err
		}
		if res.outcome == navFound {
			return res.pose, true, nil
		}

		pose, ok, err := r.spinSearch(ctx, src)
		if err != nil || ok {
			return pose, ok, err
		}
	}

	r.mc.info("Hex search completed")
	return geo.LatLng{}, false, nil
}
