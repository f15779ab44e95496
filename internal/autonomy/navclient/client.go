package navclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// PollResult is what a poll tick observes.
type PollResult string

const (
	Pending   PollResult = "Pending"
	Succeeded PollResult = "Succeeded"
	Aborted   PollResult = "Aborted"
	Canceled  PollResult = "Canceled"
)

// GoalHandle identifies a submitted goal. Its fields are guarded by the owning Client's lock.
type GoalHandle struct {
	id        string
	goal      Goal
	accepted  bool
	submitted time.Time
	status    Status
	feedback  *Feedback
}

// ID returns the protocol goal id.
func (h *GoalHandle) ID() string { return h.id }

// Action returns the action server the goal was sent to.
func (h *GoalHandle) Action() Action { return h.goal.Action }

// Submitted returns the submission time, the origin of every goal timeout.
func (h *GoalHandle) Submitted() time.Time { return h.submitted }

// GoalState is a snapshot of the outstanding goal.
type GoalState struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Accepted  bool      `json:"accepted"`
	Status    Status    `json:"status"`
	Submitted time.Time `json:"submitted"`
	Feedback  *Feedback `json:"feedback,omitempty"`
}

// Client is the serializing facade over a Transport. Every operation holds one lock scoped to the
// transport for its whole duration, including the wait for the action server and the settle delay
// after a cancel, so no two protocol operations ever overlap.
type Client struct {
	mu        sync.Mutex
	transport Transport
	active    *GoalHandle

	clock              clock.Clock
	serverWaitInterval time.Duration
	settleDelay        time.Duration
	newID              func() string
	logger             log.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithClock(c clock.Clock) Option { return func(n *Client) { n.clock = c } }

func WithServerWaitInterval(d time.Duration) Option {
	return func(n *Client) { n.serverWaitInterval = d }
}

func WithSettleDelay(d time.Duration) Option { return func(n *Client) { n.settleDelay = d } }

func WithIDGenerator(f func() string) Option { return func(n *Client) { n.newID = f } }

func WithLogger(l log.Logger) Option { return func(n *Client) { n.logger = l } }

// New returns a Client driving t.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:          t,
		clock:              clock.RealClock{},
		serverWaitInterval: time.Second,
		settleDelay:        500 * time.Millisecond,
		newID:              uuid.NewString,
		logger:             log.WithName("navclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSettleDelay changes the pause after a cancel for later operations.
func (c *Client) SetSettleDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleDelay = d
}

// SetServerWaitInterval changes the pause between action server availability checks.
func (c *Client) SetServerWaitInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverWaitInterval = d
}

// SettleDelay returns the pause after a cancel.
func (c *Client) SettleDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settleDelay
}

// ServerWaitInterval returns the pause between action server availability checks.
func (c *Client) ServerWaitInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverWaitInterval
}

// SubmitFollowPath sends waypoints to the waypoint follower. The last waypoint is the destination.
func (c *Client) SubmitFollowPath(ctx context.Context, waypoints []geo.LatLng) (*GoalHandle, error) {
	if len(waypoints) == 0 {
		return nil, fmt.Errorf("follow path goal needs at least one waypoint")
	}
	return c.submit(ctx, Goal{Action: ActionFollowWaypoints, Waypoints: waypoints})
}

// SubmitSpin rotates in place by angle radians within allowance.
func (c *Client) SubmitSpin(ctx context.Context, angle float64, allowance time.Duration) (*GoalHandle, error) {
	return c.submit(ctx, Goal{Action: ActionSpin, TargetYaw: angle, TimeAllowance: allowance})
}

func (c *Client) submit(ctx context.Context, goal Goal) (*GoalHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.waitForServer(ctx, goal.Action); err != nil {
		return nil, err
	}

	h := &GoalHandle{
		id:     c.newID(),
		goal:   goal,
		status: StatusPending,
	}

	accepted, err := c.transport.SendGoal(ctx, h.id, goal)
	for errors.Is(err, core.ErrServerUnavailable) {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("send %s goal: %w", goal.Action, err)
		}
		// The server may have accepted the unacknowledged goal; make sure it does not run.
		if cerr := c.transport.CancelGoal(context.WithoutCancel(ctx), h.id); cerr != nil {
			c.logger.Debug("Canceling unacknowledged goal failed", "goal", h.id, "error", cerr.Error())
		}
		c.logger.Info("Goal was not acknowledged, resending", "goal", h.id, "action", goal.Action)
		c.clock.Sleep(c.serverWaitInterval)
		if err := c.waitForServer(ctx, goal.Action); err != nil {
			return nil, err
		}
		h.id = c.newID()
		accepted, err = c.transport.SendGoal(ctx, h.id, goal)
	}
	if err != nil {
		return nil, fmt.Errorf("send %s goal: %w", goal.Action, err)
	}
	h.accepted = accepted
	h.submitted = c.clock.Now()

	if !accepted {
		c.logger.Warn("Goal was rejected", "goal", h.id, "action", goal.Action)
		h.status = StatusAborted
		metrics.NavGoalsTotal.WithLabelValues(string(goal.Action), "rejected").Inc()
		return h, nil
	}

	c.active = h
	c.logger.Debug("Goal accepted", "goal", h.id, "action", goal.Action)
	return h, nil
}

// waitForServer blocks until the action server is reachable. There is no retry limit: it returns only
// when the server shows up or ctx ends. Callers hold c.mu.
func (c *Client) waitForServer(ctx context.Context, action Action) error {
	for attempt := 1; !c.transport.ServerReady(ctx, action); attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s: %w", core.ErrServerUnavailable, action, err)
		}
		c.logger.Info("Waiting for navigation action server", "action", action, "attempt", attempt)
		c.clock.Sleep(c.serverWaitInterval)
	}
	return nil
}

// Poll reports the goal's status without blocking. A nil handle has nothing to wait for and reports
// Succeeded. Once a terminal status is observed it is reported on every later poll.
func (c *Client) Poll(h *GoalHandle) PollResult {
	if h == nil {
		return Succeeded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !h.status.Terminal() {
		if fb, ok := c.transport.Feedback(h.id); ok {
			h.feedback = &fb
		}
		if st := c.transport.Status(h.id); st.Terminal() {
			c.finish(h, st)
		}
	}

	return toPollResult(h.status)
}

// Cancel requests early termination and then waits out the settle delay before releasing the lock.
// Canceling a nil, rejected or already terminal goal is a no-op.
func (c *Client) Cancel(ctx context.Context, h *GoalHandle) error {
	if h == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h.status.Terminal() {
		return nil
	}
	if st := c.transport.Status(h.id); st.Terminal() {
		c.finish(h, st)
		return nil
	}

	c.logger.Debug("Canceling goal", "goal", h.id, "action", h.goal.Action)
	err := c.transport.CancelGoal(ctx, h.id)
	metrics.NavCancelsTotal.Inc()
	if err != nil {
		err = fmt.Errorf("cancel goal %s: %w", h.id, err)
	}

	c.clock.Sleep(c.settleDelay)

	st := c.transport.Status(h.id)
	if !st.Terminal() {
		st = StatusCanceled
	}
	c.finish(h, st)
	return err
}

// Feedback returns the latest feedback seen for h.
func (c *Client) Feedback(h *GoalHandle) (Feedback, bool) {
	if h == nil {
		return Feedback{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if fb, ok := c.transport.Feedback(h.id); ok {
		h.feedback = &fb
	}
	if h.feedback == nil {
		return Feedback{}, false
	}
	return *h.feedback, true
}

// NavigatorActive asks the navigation subsystem whether it is fully initialized.
func (c *Client) NavigatorActive(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.transport.NavigatorActive(ctx)
	metrics.NavReady.Set(metrics.BoolGauge(active && err == nil))
	return active, err
}

// Active returns a snapshot of the outstanding goal, if any.
func (c *Client) Active() (GoalState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return GoalState{}, false
	}
	h := c.active
	st := GoalState{
		ID:        h.id,
		Action:    h.goal.Action,
		Accepted:  h.accepted,
		Status:    h.status,
		Submitted: h.submitted,
	}
	if h.feedback != nil {
		fb := *h.feedback
		st.Feedback = &fb
	}
	return st, true
}

// finish records a terminal status. Callers hold c.mu.
func (c *Client) finish(h *GoalHandle, st Status) {
	h.status = st
	if c.active == h {
		c.active = nil
	}
	metrics.NavGoalsTotal.WithLabelValues(string(h.goal.Action), string(st)).Inc()
}

func toPollResult(s Status) PollResult {
	switch s {
	case StatusSucceeded:
		return Succeeded
	case StatusAborted:
		return Aborted
	case StatusCanceled:
		return Canceled
	default:
		return Pending
	}
}
