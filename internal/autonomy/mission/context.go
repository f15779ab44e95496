package mission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// LegResult is the outcome of one executed leg.
type LegResult struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Leg outcomes.
const (
	LegSucceeded       = "succeeded"
	LegTimedOut        = "timed_out"
	LegSearchExhausted = "search_exhausted"
	LegCanceled        = "canceled"
	LegFailed          = "failed"
)

// State is a snapshot of a running mission.
type State struct {
	ID         string      `json:"id"`
	Order      []string    `json:"order,omitempty"`
	CurrentLeg string      `json:"current_leg,omitempty"`
	LegState   string      `json:"leg_state,omitempty"`
	Canceling  bool        `json:"canceling"`
	Legs       []LegResult `json:"legs,omitempty"`
}

// MissionContext is the state one mission shares between the execution goroutine, the sensor
// handlers (through the perception cache) and the gateway. The gateway only ever sets the cancel flag.
type MissionContext struct {
	ID string

	cancel   atomic.Bool
	cache    *perception.Cache
	reporter core.Reporter
	logger   log.Logger

	mu       sync.RWMutex
	current  *core.Leg
	label    string
	legState string
	order    []string
	legs     []LegResult
}

// NewMissionContext returns the context of mission id. Feedback goes to reporter, which may be nil.
func NewMissionContext(id string, cache *perception.Cache, reporter core.Reporter) *MissionContext {
	return &MissionContext{
		ID:       id,
		cache:    cache,
		reporter: reporter,
		logger:   log.WithName("mission").WithValues("mission", id),
		label:    core.LegStart,
	}
}

// RequestCancel sets the cancel flag. It never blocks.
func (m *MissionContext) RequestCancel() {
	m.cancel.Store(true)
}

// CancelRequested reports whether the task client asked for cancellation.
func (m *MissionContext) CancelRequested() bool {
	return m.cancel.Load()
}

// CurrentLeg returns the leg being executed, if any.
func (m *MissionContext) CurrentLeg() (core.Leg, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return core.Leg{}, false
	}
	return *m.current, true
}

// State returns a snapshot for status queries.
func (m *MissionContext) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := State{
		ID:        m.ID,
		Order:     append([]string(nil), m.order...),
		LegState:  m.legState,
		Canceling: m.cancel.Load(),
		Legs:      append([]LegResult(nil), m.legs...),
	}
	if m.current != nil {
		st.CurrentLeg = m.current.Name
	}
	return st
}

// Legs returns the results of every leg executed so far.
func (m *MissionContext) Legs() []LegResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LegResult(nil), m.legs...)
}

// bind makes leg current for both the mission and the perception cache. Feedback is tagged with its
// name until the next bind or setLabel.
func (m *MissionContext) bind(leg core.Leg) perception.Binding {
	m.mu.Lock()
	m.current = &leg
	m.label = leg.Name
	m.legState = ""
	m.mu.Unlock()

	return m.cache.Activate(leg)
}

func (m *MissionContext) unbind(b perception.Binding) {
	m.cache.Deactivate(b)

	m.mu.Lock()
	m.current = nil
	m.legState = ""
	m.mu.Unlock()
}

func (m *MissionContext) setLabel(label string) {
	m.mu.Lock()
	m.label = label
	m.mu.Unlock()
}

func (m *MissionContext) setLegState(state string) {
	m.mu.Lock()
	m.legState = state
	m.mu.Unlock()
}

func (m *MissionContext) setOrder(order []string) {
	m.mu.Lock()
	m.order = order
	m.mu.Unlock()
}

func (m *MissionContext) recordLeg(r LegResult) {
	m.mu.Lock()
	m.legs = append(m.legs, r)
	m.mu.Unlock()
}

// canceled reports whether the mission must stop, either because the task client asked or because
// the process is shutting down.
func (m *MissionContext) canceled(ctx context.Context) bool {
	return m.CancelRequested() || ctx.Err() != nil
}

func (m *MissionContext) cancelError(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !m.CancelRequested() {
		return fmt.Errorf("%w: %w", core.ErrMissionCanceled, err)
	}
	return core.ErrMissionCanceled
}

func (m *MissionContext) info(text string)    { m.report(core.SeverityInfo, text) }
func (m *MissionContext) warn(text string)    { m.report(core.SeverityWarn, text) }
func (m *MissionContext) fail(text string)    { m.report(core.SeverityError, text) }
func (m *MissionContext) fatal(text string)   { m.report(core.SeverityFatal, text) }
func (m *MissionContext) success(text string) { m.report(core.SeveritySuccess, text) }

// report sends one feedback line and mirrors it to the log at the matching level.
func (m *MissionContext) report(severity core.Severity, text string) {
	m.mu.RLock()
	label := m.label
	m.mu.RUnlock()

	switch severity {
	case core.SeverityWarn:
		m.logger.Warn(text, "leg", label)
	case core.SeverityError:
		m.logger.Error(nil, text, "leg", label)
	case core.SeverityFatal:
		m.logger.Error(nil, text, "leg", label, "fatal", true)
	case core.SeveritySuccess:
		m.logger.Info(text, "leg", label, "success", true)
	default:
		m.logger.Info(text, "leg", label)
	}

	if m.reporter != nil {
		m.reporter.Report(label, severity, text)
	}
}
