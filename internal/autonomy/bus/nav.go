package bus

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

const (
	// lifecycleTTL is how long a lifecycle report counts as current. The navigation subsystem
	// republishes it periodically.
	lifecycleTTL = 30 * time.Second

	// goalHistory bounds the number of goals whose status is remembered.
	goalHistory = 32

	lifecycleActive = "active"
)

type waypoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type goalMessage struct {
	GoalID          string     `json:"goal_id"`
	Action          string     `json:"action"`
	Waypoints       []waypoint `json:"waypoints,omitempty"`
	TargetYaw       float64    `json:"target_yaw,omitempty"`
	TimeAllowanceMS int64      `json:"time_allowance_ms,omitempty"`
}

type ackMessage struct {
	GoalID   string `json:"goal_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type statusMessage struct {
	GoalID string `json:"goal_id"`
	Status string `json:"status"`
}

type feedbackMessage struct {
	GoalID            string  `json:"goal_id"`
	DistanceRemaining float64 `json:"distance_remaining"`
	NavigationTimeMS  int64   `json:"navigation_time_ms"`
	Recoveries        int     `json:"recoveries"`
}

type cancelMessage struct {
	GoalID string `json:"goal_id"`
}

type lifecycleMessage struct {
	State     string    `json:"state"`
	Servers   []string  `json:"servers"`
	Timestamp time.Time `json:"timestamp"`
}

// NavTransport speaks the navigation action protocol over the bus. Goals are published and their
// acknowledgement awaited on a per-goal channel; terminal statuses and feedback arrive asynchronously
// and are kept per goal id.
type NavTransport struct {
	sender     Sender
	clock      clock.Clock
	ackTimeout time.Duration

	lock      sync.Mutex
	pending   map[string]chan ackMessage
	status    map[string]navclient.Status
	feedback  map[string]navclient.Feedback
	order     []string
	lifecycle *lifecycleMessage
	seenAt    time.Time
}

var (
	_ Module              = (*NavTransport)(nil)
	_ navclient.Transport = (*NavTransport)(nil)
)

func NewNavTransport(ackTimeout time.Duration, c clock.Clock) *NavTransport {
	return &NavTransport{
		clock:      c,
		ackTimeout: ackTimeout,
		pending:    make(map[string]chan ackMessage),
		status:     make(map[string]navclient.Status),
		feedback:   make(map[string]navclient.Feedback),
	}
}

func (n *NavTransport) Name() string {
	return "Navigation"
}

func (n *NavTransport) Setup(ctx context.Context, sender Sender) error {
	n.sender = sender
	return nil
}

func (n *NavTransport) Routes() map[EventType]HandlerFunc {
	return map[EventType]HandlerFunc{
		EventNavGoalAck:   JSONAdapter(n.HandleAck),
		EventNavStatus:    JSONAdapter(n.HandleStatus),
		EventNavFeedback:  JSONAdapter(n.HandleFeedback),
		EventNavLifecycle: JSONAdapter(n.HandleLifecycle),
	}
}

// ServerReady reports whether a current lifecycle report lists the action server.
func (n *NavTransport) ServerReady(ctx context.Context, action navclient.Action) bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	if !n.freshLocked() {
		return false
	}
	return slices.Contains(n.lifecycle.Servers, string(action))
}

// NavigatorActive reports whether a current lifecycle report says the subsystem is active.
func (n *NavTransport) NavigatorActive(ctx context.Context) (bool, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.lifecycle == nil {
		return false, nil
	}
	if !n.freshLocked() {
		return false, fmt.Errorf("lifecycle report is stale (last seen %v)", n.seenAt)
	}
	return n.lifecycle.State == lifecycleActive, nil
}

func (n *NavTransport) freshLocked() bool {
	return n.lifecycle != nil && n.clock.Since(n.seenAt) <= lifecycleTTL
}

// SendGoal publishes goal and waits for its acknowledgement. No acknowledgement within the ack
// timeout is reported as core.ErrServerUnavailable.
func (n *NavTransport) SendGoal(ctx context.Context, id string, goal navclient.Goal) (bool, error) {
	msg := goalMessage{GoalID: id, Action: string(goal.Action)}
	switch goal.Action {
	case navclient.ActionFollowWaypoints:
		msg.Waypoints = make([]waypoint, len(goal.Waypoints))
		for i, p := range goal.Waypoints {
			msg.Waypoints[i] = waypoint{Lat: p.Lat, Lon: p.Lon}
		}
	case navclient.ActionSpin:
		msg.TargetYaw = goal.TargetYaw
		msg.TimeAllowanceMS = goal.TimeAllowance.Milliseconds()
	}

	ackChan := make(chan ackMessage, 1)
	n.lock.Lock()
	n.pending[id] = ackChan
	n.trackLocked(id)
	n.lock.Unlock()

	defer func() {
		n.lock.Lock()
		delete(n.pending, id)
		n.lock.Unlock()
	}()

	if err := n.sender.SendJSON(ctx, EventNavGoal, msg); err != nil {
		n.forget(id)
		return false, err
	}

	timer := n.clock.NewTimer(n.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackChan:
		if !ack.Accepted {
			log.Warn("Navigation goal rejected", "goal", id, "reason", ack.Reason)
			n.setStatus(id, navclient.StatusAborted)
		}
		return ack.Accepted, nil
	case <-timer.C():
		n.forget(id)
		return false, fmt.Errorf("%w: goal %s not acknowledged within %v", core.ErrServerUnavailable, id, n.ackTimeout)
	case <-ctx.Done():
		n.forget(id)
		return false, ctx.Err()
	}
}

func (n *NavTransport) Status(id string) navclient.Status {
	n.lock.Lock()
	defer n.lock.Unlock()

	if st, ok := n.status[id]; ok {
		return st
	}
	return navclient.StatusUnknown
}

func (n *NavTransport) Feedback(id string) (navclient.Feedback, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()

	fb, ok := n.feedback[id]
	return fb, ok
}

func (n *NavTransport) CancelGoal(ctx context.Context, id string) error {
	return n.sender.SendJSON(ctx, EventNavCancel, cancelMessage{GoalID: id})
}

func (n *NavTransport) HandleAck(ctx context.Context, msg *ackMessage) error {
	n.lock.Lock()
	ch, ok := n.pending[msg.GoalID]
	n.lock.Unlock()

	if !ok {
		log.Debug("Dropping acknowledgement for unknown goal", "goal", msg.GoalID)
		return nil
	}

	select {
	case ch <- *msg:
	default:
	}
	return nil
}

func (n *NavTransport) HandleStatus(ctx context.Context, msg *statusMessage) error {
	st := navclient.Status(msg.Status)
	if !st.Terminal() {
		return fmt.Errorf("goal %s: unexpected status %q", msg.GoalID, msg.Status)
	}

	n.lock.Lock()
	defer n.lock.Unlock()

	cur, ok := n.status[msg.GoalID]
	if !ok {
		log.Debug("Dropping status for unknown goal", "goal", msg.GoalID, "status", msg.Status)
		return nil
	}
	if !cur.Terminal() {
		n.status[msg.GoalID] = st
	}
	return nil
}

func (n *NavTransport) HandleFeedback(ctx context.Context, msg *feedbackMessage) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if _, ok := n.status[msg.GoalID]; !ok {
		return nil
	}
	n.feedback[msg.GoalID] = navclient.Feedback{
		DistanceRemaining: msg.DistanceRemaining,
		NavigationTime:    time.Duration(msg.NavigationTimeMS) * time.Millisecond,
		Recoveries:        msg.Recoveries,
	}
	return nil
}

func (n *NavTransport) HandleLifecycle(ctx context.Context, msg *lifecycleMessage) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	prev := n.lifecycle
	n.lifecycle = msg
	n.seenAt = n.clock.Now()

	if prev == nil || prev.State != msg.State {
		log.Info("Navigation lifecycle changed", "state", msg.State, "servers", msg.Servers)
	}
	return nil
}

func (n *NavTransport) setStatus(id string, st navclient.Status) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.status[id] = st
}

func (n *NavTransport) forget(id string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	delete(n.status, id)
	delete(n.feedback, id)
}

// trackLocked starts tracking id as pending and evicts the oldest goals beyond goalHistory.
func (n *NavTransport) trackLocked(id string) {
	n.status[id] = navclient.StatusPending
	n.order = append(n.order, id)
	for len(n.order) > goalHistory {
		old := n.order[0]
		n.order = n.order[1:]
		delete(n.status, old)
		delete(n.feedback, old)
	}
}
