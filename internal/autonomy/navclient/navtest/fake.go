// Package navtest provides a scriptable in-memory navclient.Transport for tests.
package navtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
)

// Call describes one submitted goal.
type Call struct {
	Index int
	ID    string
	Goal  navclient.Goal
}

// Transport is a fake navclient.Transport. It records every protocol operation and counts operations
// that overlap in time, which a correctly serialized client never produces.
type Transport struct {
	// Script decides the status of a pending goal each time it is polled; polls counts from 1.
	// A nil Script keeps every goal pending.
	Script func(c Call, polls int) navclient.Status

	// OnSubmit runs after a goal is recorded.
	OnSubmit func(c Call)

	// Reject makes the server reject every goal.
	Reject bool

	// UnreadyPolls is the number of ServerReady calls answered false before the server shows up.
	UnreadyPolls int

	// InactivePolls is the number of NavigatorActive calls answered false before it reports active.
	InactivePolls int

	// DropAcks is the number of SendGoal calls that reach the server but whose acknowledgement is
	// lost, so the caller sees core.ErrServerUnavailable.
	DropAcks int

	// OpDelay is slept inside every operation to widen race windows in stress tests.
	OpDelay time.Duration

	inflight atomic.Int32
	overlaps atomic.Int32

	mu          sync.Mutex
	calls       []Call
	status      map[string]navclient.Status
	polls       map[string]int
	cancels     []string
	dropped     []string
	readyCalls  int
	activeCalls int
}

var _ navclient.Transport = (*Transport)(nil)

func (t *Transport) enter() func() {
	if t.inflight.Add(1) > 1 {
		t.overlaps.Add(1)
	}
	if t.OpDelay > 0 {
		time.Sleep(t.OpDelay)
	}
	return func() { t.inflight.Add(-1) }
}

func (t *Transport) init() {
	if t.status == nil {
		t.status = map[string]navclient.Status{}
		t.polls = map[string]int{}
	}
}

func (t *Transport) ServerReady(ctx context.Context, action navclient.Action) bool {
	defer t.enter()()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.readyCalls++
	return t.readyCalls > t.UnreadyPolls
}

func (t *Transport) SendGoal(ctx context.Context, id string, goal navclient.Goal) (bool, error) {
	defer t.enter()()

	t.mu.Lock()
	t.init()
	if len(t.dropped) < t.DropAcks {
		t.dropped = append(t.dropped, id)
		t.status[id] = navclient.StatusPending
		t.mu.Unlock()
		return false, fmt.Errorf("%w: goal %s not acknowledged", core.ErrServerUnavailable, id)
	}
	c := Call{Index: len(t.calls), ID: id, Goal: goal}
	t.calls = append(t.calls, c)
	if t.Reject {
		t.status[id] = navclient.StatusAborted
	} else {
		t.status[id] = navclient.StatusPending
	}
	onSubmit := t.OnSubmit
	t.mu.Unlock()

	if onSubmit != nil {
		onSubmit(c)
	}
	return !t.Reject, nil
}

func (t *Transport) Status(id string) navclient.Status {
	defer t.enter()()

	t.mu.Lock()
	t.init()
	st, ok := t.status[id]
	if !ok {
		t.mu.Unlock()
		return navclient.StatusUnknown
	}
	if st.Terminal() || t.Script == nil {
		t.mu.Unlock()
		return st
	}
	t.polls[id]++
	polls := t.polls[id]
	c := t.callLocked(id)
	script := t.Script
	t.mu.Unlock()

	next := script(c, polls)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status[id].Terminal() {
		t.status[id] = next
	}
	return t.status[id]
}

func (t *Transport) Feedback(id string) (navclient.Feedback, bool) {
	defer t.enter()()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	if _, ok := t.status[id]; !ok {
		return navclient.Feedback{}, false
	}
	return navclient.Feedback{Recoveries: 0, NavigationTime: time.Duration(t.polls[id]) * 100 * time.Millisecond}, true
}

func (t *Transport) CancelGoal(ctx context.Context, id string) error {
	defer t.enter()()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	if _, ok := t.status[id]; !ok {
		return fmt.Errorf("unknown goal %s", id)
	}
	t.cancels = append(t.cancels, id)
	if !t.status[id].Terminal() {
		t.status[id] = navclient.StatusCanceled
	}
	return nil
}

func (t *Transport) NavigatorActive(ctx context.Context) (bool, error) {
	defer t.enter()()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeCalls++
	return t.activeCalls > t.InactivePolls, nil
}

func (t *Transport) callLocked(id string) Call {
	for _, c := range t.calls {
		if c.ID == id {
			return c
		}
	}
	return Call{Index: -1, ID: id}
}

// Calls returns every submitted goal in submission order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// CallsFor returns the submitted goals of one action.
func (t *Transport) CallsFor(action navclient.Action) []Call {
	var out []Call
	for _, c := range t.Calls() {
		if c.Goal.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Cancels returns the ids of every goal a cancel was sent for, in order.
func (t *Transport) Cancels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.cancels...)
}

// Dropped returns the ids of goals whose acknowledgement was lost, in order.
func (t *Transport) Dropped() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.dropped...)
}

// Overlaps returns how many operations started while another one was still running.
func (t *Transport) Overlaps() int {
	return int(t.overlaps.Load())
}

// SucceedAfter returns a Script that completes every goal after n polls.
func SucceedAfter(n int) func(Call, int) navclient.Status {
	return func(_ Call, polls int) navclient.Status {
		if polls >= n {
			return navclient.StatusSucceeded
		}
		return navclient.StatusPending
	}
}
