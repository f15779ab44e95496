package navclient_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient/navtest"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newClient(tr *navtest.Transport) (*navclient.Client, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(epoch)
	c := navclient.New(tr,
		navclient.WithClock(clk),
		navclient.WithServerWaitInterval(time.Second),
		navclient.WithSettleDelay(500*time.Millisecond),
		navclient.WithLogger(log.NewNopLogger()),
	)
	return c, clk
}

var target = []geo.LatLng{{Lat: 38.4, Lon: -110.78}}

func TestPollNilHandle(t *testing.T) {
	c, _ := newClient(&navtest.Transport{})
	if got := c.Poll(nil); got != navclient.Succeeded {
		t.Errorf("Poll(nil) = %v, want Succeeded", got)
	}
	if err := c.Cancel(context.Background(), nil); err != nil {
		t.Errorf("Cancel(nil) = %v, want nil", err)
	}
}

func TestSubmitAndPoll(t *testing.T) {
	tr := &navtest.Transport{Script: navtest.SucceedAfter(3)}
	c, _ := newClient(tr)

	h, err := c.SubmitFollowPath(context.Background(), target)
	if err != nil {
		t.Fatalf("SubmitFollowPath() error = %v", err)
	}
	if _, ok := c.Active(); !ok {
		t.Fatal("expected an outstanding goal after submit")
	}

	want := []navclient.PollResult{navclient.Pending, navclient.Pending, navclient.Succeeded, navclient.Succeeded}
	for i, w := range want {
		if got := c.Poll(h); got != w {
			t.Errorf("poll %d = %v, want %v", i+1, got, w)
		}
	}
	if _, ok := c.Active(); ok {
		t.Error("terminal goal should no longer be outstanding")
	}
	if got := len(tr.CallsFor(navclient.ActionFollowWaypoints)); got != 1 {
		t.Errorf("follow path goals = %d, want 1", got)
	}
}

func TestSubmitFollowPathEmpty(t *testing.T) {
	c, _ := newClient(&navtest.Transport{})
	if _, err := c.SubmitFollowPath(context.Background(), nil); err == nil {
		t.Error("expected an error for an empty waypoint list")
	}
}

func TestSubmitSpin(t *testing.T) {
	tr := &navtest.Transport{}
	c, _ := newClient(tr)

	if _, err := c.SubmitSpin(context.Background(), 1.5, 30*time.Second); err != nil {
		t.Fatalf("SubmitSpin() error = %v", err)
	}
	calls := tr.CallsFor(navclient.ActionSpin)
	if len(calls) != 1 {
		t.Fatalf("spin goals = %d, want 1", len(calls))
	}
	if calls[0].Goal.TargetYaw != 1.5 || calls[0].Goal.TimeAllowance != 30*time.Second {
		t.Errorf("spin goal = %+v", calls[0].Goal)
	}
}

func TestCancel(t *testing.T) {
	t.Run("cancels once and waits out the settle delay", func(t *testing.T) {
		tr := &navtest.Transport{}
		c, clk := newClient(tr)

		h, err := c.SubmitFollowPath(context.Background(), target)
		if err != nil {
			t.Fatalf("SubmitFollowPath() error = %v", err)
		}

		before := clk.Now()
		if err := c.Cancel(context.Background(), h); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if elapsed := clk.Since(before); elapsed < 500*time.Millisecond {
			t.Errorf("settle delay = %v, want at least 500ms", elapsed)
		}
		if err := c.Cancel(context.Background(), h); err != nil {
			t.Fatalf("second Cancel() error = %v", err)
		}

		if got := len(tr.Cancels()); got != 1 {
			t.Errorf("cancel requests = %d, want 1", got)
		}
		if got := c.Poll(h); got != navclient.Canceled {
			t.Errorf("Poll() after cancel = %v, want Canceled", got)
		}
	})

	t.Run("terminal goal is not canceled", func(t *testing.T) {
		tr := &navtest.Transport{Script: navtest.SucceedAfter(1)}
		c, _ := newClient(tr)

		h, _ := c.SubmitFollowPath(context.Background(), target)
		if got := c.Poll(h); got != navclient.Succeeded {
			t.Fatalf("Poll() = %v, want Succeeded", got)
		}
		if err := c.Cancel(context.Background(), h); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if got := len(tr.Cancels()); got != 0 {
			t.Errorf("cancel requests = %d, want 0", got)
		}
		if got := c.Poll(h); got != navclient.Succeeded {
			t.Errorf("Poll() = %v, want Succeeded", got)
		}
	})
}

func TestRejectedGoal(t *testing.T) {
	tr := &navtest.Transport{Reject: true}
	c, _ := newClient(tr)

	h, err := c.SubmitSpin(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("SubmitSpin() error = %v", err)
	}
	if got := c.Poll(h); got != navclient.Aborted {
		t.Errorf("Poll() = %v, want Aborted", got)
	}
	if _, ok := c.Active(); ok {
		t.Error("rejected goal should not be outstanding")
	}
	if err := c.Cancel(context.Background(), h); err != nil || len(tr.Cancels()) != 0 {
		t.Errorf("Cancel() on a rejected goal = %v with %d requests, want a no-op", err, len(tr.Cancels()))
	}
}

func TestServerWait(t *testing.T) {
	t.Run("waits until the server shows up", func(t *testing.T) {
		tr := &navtest.Transport{UnreadyPolls: 3}
		c, clk := newClient(tr)

		if _, err := c.SubmitFollowPath(context.Background(), target); err != nil {
			t.Fatalf("SubmitFollowPath() error = %v", err)
		}
		if elapsed := clk.Since(epoch); elapsed != 3*time.Second {
			t.Errorf("waited %v, want 3s", elapsed)
		}
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		tr := &navtest.Transport{UnreadyPolls: 1 << 30}
		c, _ := newClient(tr)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.SubmitFollowPath(ctx, target)
		if !errors.Is(err, core.ErrServerUnavailable) {
			t.Errorf("error = %v, want ErrServerUnavailable", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want it to wrap context.Canceled", err)
		}
		if got := len(tr.Calls()); got != 0 {
			t.Errorf("goals sent = %d, want 0", got)
		}
	})
}

func TestNavigatorActive(t *testing.T) {
	tr := &navtest.Transport{InactivePolls: 2}
	c, _ := newClient(tr)

	for i, want := range []bool{false, false, true} {
		got, err := c.NavigatorActive(context.Background())
		if err != nil {
			t.Fatalf("NavigatorActive() error = %v", err)
		}
		if got != want {
			t.Errorf("call %d = %v, want %v", i+1, got, want)
		}
	}
}

func TestOperationsNeverOverlap(t *testing.T) {
	tr := &navtest.Transport{
		Script:  navtest.SucceedAfter(4),
		OpDelay: 100 * time.Microsecond,
	}
	c, _ := newClient(tr)

	const workers = 8
	const rounds = 15

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < rounds; i++ {
				var h *navclient.GoalHandle
				var err error
				if (w+i)%2 == 0 {
					h, err = c.SubmitFollowPath(ctx, target)
				} else {
					h, err = c.SubmitSpin(ctx, 1, time.Second)
				}
				if err != nil {
					t.Errorf("submit: %v", err)
					return
				}
				c.Poll(h)
				c.Feedback(h)
				if i%3 == 0 {
					_ = c.Cancel(ctx, h)
				}
				c.Poll(h)
				_, _ = c.NavigatorActive(ctx)
			}
		}(w)
	}
	wg.Wait()

	if got := tr.Overlaps(); got != 0 {
		t.Errorf("overlapping transport operations = %d, want 0", got)
	}
	if got := len(tr.Calls()); got != workers*rounds {
		t.Errorf("goals sent = %d, want %d", got, workers*rounds)
	}
}

func TestLostAcknowledgement(t *testing.T) {
	t.Run("cancels the orphan and resends under a fresh id", func(t *testing.T) {
		tr := &navtest.Transport{DropAcks: 2, Script: navtest.SucceedAfter(1)}
		c, clk := newClient(tr)

		h, err := c.SubmitFollowPath(context.Background(), target)
		if err != nil {
			t.Fatalf("SubmitFollowPath() error = %v", err)
		}
		dropped := tr.Dropped()
		if len(dropped) != 2 {
			t.Fatalf("lost acknowledgements = %d, want 2", len(dropped))
		}
		cancels := tr.Cancels()
		if len(cancels) != 2 || cancels[0] != dropped[0] || cancels[1] != dropped[1] {
			t.Errorf("cancels = %v, want %v", cancels, dropped)
		}
		calls := tr.Calls()
		if len(calls) != 1 || calls[0].ID != h.ID() {
			t.Fatalf("accepted goals = %+v, want one with id %s", calls, h.ID())
		}
		for _, id := range dropped {
			if id == h.ID() {
				t.Errorf("resent goal reused orphaned id %s", id)
			}
		}
		if elapsed := clk.Since(epoch); elapsed != 2*time.Second {
			t.Errorf("waited %v, want 2s", elapsed)
		}
		if got := c.Poll(h); got != navclient.Succeeded {
			t.Errorf("Poll() = %v, want Succeeded", got)
		}
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		tr := &navtest.Transport{DropAcks: 1 << 30}
		c, _ := newClient(tr)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			for len(tr.Dropped()) < 3 {
				time.Sleep(time.Millisecond)
			}
			cancel()
		}()

		_, err := c.SubmitFollowPath(ctx, target)
		if !errors.Is(err, core.ErrServerUnavailable) {
			t.Errorf("error = %v, want ErrServerUnavailable", err)
		}
		if got := len(tr.Calls()); got != 0 {
			t.Errorf("accepted goals = %d, want 0", got)
		}
	})
}

func TestSetters(t *testing.T) {
	tr := &navtest.Transport{UnreadyPolls: 2}
	c, clk := newClient(tr)
	c.SetServerWaitInterval(3 * time.Second)
	c.SetSettleDelay(2 * time.Second)

	h, err := c.SubmitFollowPath(context.Background(), target)
	if err != nil {
		t.Fatalf("SubmitFollowPath() error = %v", err)
	}
	if elapsed := clk.Since(epoch); elapsed != 6*time.Second {
		t.Errorf("server wait = %v, want 6s", elapsed)
	}

	before := clk.Now()
	if err := c.Cancel(context.Background(), h); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if elapsed := clk.Since(before); elapsed != 2*time.Second {
		t.Errorf("settle delay = %v, want 2s", elapsed)
	}
}
