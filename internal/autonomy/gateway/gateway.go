// Package gateway is the boundary the task-issuing client talks to. It accepts one mission at a time,
// keeps the feedback stream of the current and the last mission, and forwards cancellation requests
// to the running mission without ever blocking on it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/mission"
	"github.com/autopeer-io/roverpilot/internal/autonomy/navclient"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// ErrMissionNotFound is returned for an id that is neither the current nor the last mission.
var ErrMissionNotFound = errors.New("mission not found")

const archiveTimeout = 30 * time.Second

// Executor runs missions. *mission.Executor implements it.
type Executor interface {
	Run(ctx context.Context, mc *mission.MissionContext, legs []core.Leg) core.Result
	Cache() *perception.Cache
	ActiveGoal() (navclient.GoalState, bool)
}

// Mirror receives a copy of every feedback line.
type Mirror interface {
	Mirror(missionID string, f core.Feedback)
}

// Archiver stores the report of a terminated mission.
type Archiver interface {
	Archive(ctx context.Context, r Report) error
}

// Report is the archived record of one mission.
type Report struct {
	ID       string              `json:"id"`
	Started  time.Time           `json:"started"`
	Finished time.Time           `json:"finished"`
	Outcome  core.Outcome        `json:"outcome"`
	Message  string              `json:"message"`
	Request  []LegSpec           `json:"request"`
	Legs     []mission.LegResult `json:"legs"`
	Feedback []core.Feedback     `json:"feedback"`
}

// Snapshot describes a mission as seen by the task client.
type Snapshot struct {
	ID       string               `json:"id"`
	Running  bool                 `json:"running"`
	Started  time.Time            `json:"started"`
	Finished *time.Time           `json:"finished,omitempty"`
	State    mission.State        `json:"state"`
	Result   *core.Result         `json:"result,omitempty"`
	NavGoal  *navclient.GoalState `json:"nav_goal,omitempty"`
	Feedback int                  `json:"feedback"`
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithArchiver stores every terminated mission with a.
func WithArchiver(a Archiver) Option { return func(g *Gateway) { g.archiver = a } }

// WithMirror forwards every feedback line to m as well.
func WithMirror(m Mirror) Option { return func(g *Gateway) { g.mirror = m } }

func WithClock(c clock.Clock) Option { return func(g *Gateway) { g.clock = c } }

func WithLogger(l log.Logger) Option { return func(g *Gateway) { g.logger = l } }

// Gateway accepts mission requests and runs them on the Executor, one at a time.
type Gateway struct {
	exec     Executor
	archiver Archiver
	mirror   Mirror
	clock    clock.Clock
	logger   log.Logger

	// ctx bounds every mission; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	objectLabels map[string]string
	current      *record
	last         *record
}

// New returns a Gateway running missions on exec.
func New(exec Executor, objectLabels map[string]string, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		exec:         exec,
		clock:        clock.RealClock{},
		logger:       log.WithName("gateway"),
		ctx:          ctx,
		cancel:       cancel,
		objectLabels: maps.Clone(objectLabels),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetObjectLabels replaces the object class to detector label mapping used by later requests.
func (g *Gateway) SetObjectLabels(labels map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objectLabels = maps.Clone(labels)
}

// Submit validates req and starts it. It returns the mission id. An empty request is recorded as an
// aborted mission and reported with core.ErrInvalidRequest; a malformed one is rejected without a
// record. core.ErrMissionInProgress is returned while another mission runs.
func (g *Gateway) Submit(req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		return "", fmt.Errorf("%w: %s", core.ErrMissionInProgress, g.current.id)
	}
	if err := g.ctx.Err(); err != nil {
		return "", fmt.Errorf("gateway is shutting down: %w", err)
	}

	if len(req.Legs) == 0 {
		return g.rejectEmpty(req), fmt.Errorf("%w: no task legs provided", core.ErrInvalidRequest)
	}

	legs, err := ParseLegs(req.Legs, g.objectLabels)
	if err != nil {
		return "", err
	}

	r := g.newRecord(req)
	r.mc = mission.NewMissionContext(r.id, g.exec.Cache(), r)
	g.current = r

	g.logger.Info("Mission accepted", "mission", r.id, "legs", len(legs))

	g.wg.Add(1)
	go g.run(r, legs)

	return r.id, nil
}

// rejectEmpty records a mission that never started. Nothing moves: no triggers, no goals.
func (g *Gateway) rejectEmpty(req Request) string {
	r := g.newRecord(req)
	r.Report(core.LegStart, core.SeverityFatal, "No task legs provided")
	r.finish(core.Result{Outcome: core.OutcomeAborted, Message: core.MessageEmptyRequest}, g.clock.Now(), nil)
	g.last = r

	g.logger.Warn("Rejected empty mission request", "mission", r.id)
	return r.id
}

func (g *Gateway) newRecord(req Request) *record {
	return &record{
		id:      uuid.NewString(),
		request: req.Legs,
		started: g.clock.Now(),
		clock:   g.clock,
		mirror:  g.mirror,
		done:    make(chan struct{}),
	}
}

func (g *Gateway) run(r *record, legs []core.Leg) {
	defer g.wg.Done()

	res := g.exec.Run(g.ctx, r.mc, legs)

	g.mu.Lock()
	r.finish(res, g.clock.Now(), r.mc.Legs())
	g.current = nil
	g.last = r
	g.mu.Unlock()

	g.logger.Info("Mission terminated", "mission", r.id, "outcome", res.Outcome)

	if g.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := g.archiver.Archive(ctx, r.report()); err != nil {
		g.logger.Error(err, "Failed to archive mission report", "mission", r.id)
	}
}

// Cancel asks mission id to stop. An empty id means the current mission. It only sets the cancel
// flag; the mission winds down on its own and terminates Aborted. Canceling a terminated mission is
// a no-op.
func (g *Gateway) Cancel(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.lookup(id)
	if r == nil {
		return fmt.Errorf("%w: %q", ErrMissionNotFound, id)
	}
	if r.mc != nil {
		r.mc.RequestCancel()
		g.logger.Info("Mission cancel requested", "mission", r.id)
	}
	return nil
}

// Current returns the running mission, if any.
func (g *Gateway) Current() (Snapshot, bool) {
	g.mu.Lock()
	r := g.current
	g.mu.Unlock()

	if r == nil {
		return Snapshot{}, false
	}
	return g.snapshot(r), true
}

// Get returns mission id. An empty id means the current mission, or the last one when idle.
func (g *Gateway) Get(id string) (Snapshot, error) {
	g.mu.Lock()
	r := g.lookup(id)
	g.mu.Unlock()

	if r == nil {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrMissionNotFound, id)
	}
	return g.snapshot(r), nil
}

// Feedback returns the feedback of mission id starting at index since, and whether the stream is
// complete.
func (g *Gateway) Feedback(id string, since int) ([]core.Feedback, bool, error) {
	g.mu.Lock()
	r := g.lookup(id)
	g.mu.Unlock()

	if r == nil {
		return nil, false, fmt.Errorf("%w: %q", ErrMissionNotFound, id)
	}
	lines, done := r.since(since)
	return lines, done, nil
}

// Wait blocks until mission id terminates or ctx is done.
func (g *Gateway) Wait(ctx context.Context, id string) (core.Result, error) {
	g.mu.Lock()
	r := g.lookup(id)
	g.mu.Unlock()

	if r == nil {
		return core.Result{}, fmt.Errorf("%w: %q", ErrMissionNotFound, id)
	}

	select {
	case <-r.done:
		res, _ := r.outcome()
		return *res, nil
	case <-ctx.Done():
		return core.Result{}, ctx.Err()
	}
}

// Shutdown aborts the running mission and waits for it to return the vehicle to idle.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) lookup(id string) *record {
	switch {
	case id == "" && g.current != nil:
		return g.current
	case id == "":
		return g.last
	case g.current != nil && g.current.id == id:
		return g.current
	case g.last != nil && g.last.id == id:
		return g.last
	default:
		return nil
	}
}

func (g *Gateway) snapshot(r *record) Snapshot {
	s := Snapshot{ID: r.id, Started: r.started}
	if r.mc != nil {
		s.State = r.mc.State()
	} else {
		s.State = mission.State{ID: r.id}
	}

	res, finished := r.outcome()
	if res == nil {
		s.Running = true
		if goal, ok := g.exec.ActiveGoal(); ok {
			s.NavGoal = &goal
		}
	} else {
		s.Result = res
		s.Finished = &finished
	}

	s.Feedback = r.count()
	return s
}

// record is one accepted mission. It is the mission's core.Reporter.
type record struct {
	id      string
	request []LegSpec
	started time.Time
	mc      *mission.MissionContext
	clock   clock.Clock
	mirror  Mirror
	done    chan struct{}

	mu       sync.Mutex
	feedback []core.Feedback
	result   *core.Result
	finished time.Time
	legs     []mission.LegResult
}

func (r *record) Report(leg string, severity core.Severity, text string) {
	f := core.Feedback{Leg: leg, Severity: severity, Text: text, Time: r.clock.Now()}

	r.mu.Lock()
	r.feedback = append(r.feedback, f)
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.Mirror(r.id, f)
	}
}

func (r *record) finish(res core.Result, at time.Time, legs []mission.LegResult) {
	r.mu.Lock()
	r.result = &res
	r.finished = at
	r.legs = legs
	r.mu.Unlock()
	close(r.done)
}

func (r *record) outcome() (*core.Result, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil, time.Time{}
	}
	res := *r.result
	return &res, r.finished
}

func (r *record) since(i int) ([]core.Feedback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 {
		i = 0
	}
	var out []core.Feedback
	if i < len(r.feedback) {
		out = append(out, r.feedback[i:]...)
	}
	return out, r.result != nil
}

func (r *record) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feedback)
}

func (r *record) report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := Report{
		ID:       r.id,
		Started:  r.started,
		Finished: r.finished,
		Request:  r.request,
		Legs:     r.legs,
		Feedback: append([]core.Feedback(nil), r.feedback...),
	}
	if r.result != nil {
		rep.Outcome = r.result.Outcome
		rep.Message = r.result.Message
	}
	return rep
}
