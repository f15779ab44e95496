package mission

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	fsmutil "github.com/autopeer-io/roverpilot/internal/pkg/util/fsm"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// Leg states.
const (
	StatePending       = "pending"
	StateNavigating    = "navigating"
	StateSearchingSpin = "searching_spin"
	StateSearchingHex  = "searching_hex"
	StateRefining      = "refining"
	StateArrived       = "arrived"
	StateFailed        = "failed"
	StateCanceled      = "canceled"
)

const (
	// EventStart begins the approach to the leg target.
	EventStart = "event_start"
	// EventNotFound moves on to the next search strategy.
	EventNotFound = "event_not_found"
	// EventFound switches to refining toward a detected pose.
	EventFound = "event_found"
	// EventArrive ends the leg successfully.
	EventArrive = "event_arrive"
	// EventFail ends the leg with the error passed as the first argument.
	EventFail = "event_fail"
	// EventCancel ends the leg because the mission was canceled.
	EventCancel = "event_cancel"
)

var activeStates = []string{StateNavigating, StateSearchingSpin, StateSearchingHex, StateRefining}

type legMachine struct {
	*fsm.FSM
	run *legRun
}

func newLegMachine(run *legRun) *legMachine {
	m := &legMachine{run: run}

	events := fsm.Events{
		{Name: EventStart, Src: []string{StatePending}, Dst: StateNavigating},
		{Name: EventNotFound, Src: []string{StateNavigating}, Dst: StateSearchingSpin},
		{Name: EventNotFound, Src: []string{StateSearchingSpin}, Dst: StateSearchingHex},
		{Name: EventFound, Src: []string{StateNavigating, StateSearchingSpin, StateSearchingHex}, Dst: StateRefining},
		{Name: EventArrive, Src: []string{StateNavigating, StateRefining}, Dst: StateArrived},
		{Name: EventFail, Src: append([]string{StatePending}, activeStates...), Dst: StateFailed},
		{Name: EventCancel, Src: append([]string{StatePending}, activeStates...), Dst: StateCanceled},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(m.ActionEnterState),

		"enter_" + StateRefining: fsmutil.WrapEvent(m.ActionEnterRefining),
		"enter_" + StateArrived:  fsmutil.WrapEvent(m.ActionEnterArrived),
		"enter_" + StateFailed:   fsmutil.WrapEvent(m.ActionEnterFailed),
	}

	m.FSM = fsm.NewFSM(StatePending, events, callbacks)
	return m
}

// Done reports whether the leg reached a terminal state.
func (m *legMachine) Done() bool {
	switch m.Current() {
	case StateArrived, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// ActionEnterState publishes the state on the mission snapshot.
func (m *legMachine) ActionEnterState(ctx context.Context, e *fsm.Event) error {
	m.run.mc.setLegState(e.Dst)
	log.FromContext(ctx).Debug("Leg state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
	return nil
}

func (m *legMachine) ActionEnterRefining(ctx context.Context, e *fsm.Event) error {
	m.run.mc.info("Found the " + m.run.noun + "!")
	return nil
}

func (m *legMachine) ActionEnterArrived(ctx context.Context, e *fsm.Event) error {
	if m.run.leg.NeedsSearch() {
		m.run.mc.success("Found and navigated to " + m.run.noun)
	} else {
		m.run.mc.success("Navigated to " + m.run.noun)
	}
	return nil
}

func (m *legMachine) ActionEnterFailed(ctx context.Context, e *fsm.Event) error {
	var err error
	if len(e.Args) > 0 {
		err, _ = e.Args[0].(error)
	}
	if errors.Is(err, core.ErrLegSearchExhausted) {
		m.run.mc.fail("Could not find the " + m.run.noun)
	}
	return nil
}
