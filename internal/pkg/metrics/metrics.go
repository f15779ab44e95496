package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every roverpilot metric plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// MissionsTotal counts terminated missions by outcome (Succeeded, Aborted).
	MissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverpilot_missions_total",
			Help: "Total number of missions that reached a terminal result.",
		},
		[]string{"outcome"},
	)

	// MissionActive is 1 while a mission is executing.
	MissionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "roverpilot_mission_active",
			Help: "Whether a mission is currently executing (1) or not (0).",
		},
	)

	// LegsTotal counts finished legs. outcome: succeeded, timed_out, search_exhausted, canceled, failed.
	LegsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverpilot_legs_total",
			Help: "Total number of legs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	LegDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roverpilot_leg_duration_seconds",
			Help:    "Wall-clock duration of a leg from start to arrival signaling.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 900, 1800},
		},
		[]string{"kind"},
	)

	// NavGoalsTotal counts navigation goals by action and terminal status.
	NavGoalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverpilot_nav_goals_total",
			Help: "Total number of navigation goals by action and terminal status.",
		},
		[]string{"action", "status"},
	)

	NavCancelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roverpilot_nav_cancels_total",
			Help: "Total number of cancel requests sent to the navigation subsystem.",
		},
	)

	// NavReady mirrors the readiness report of the navigation subsystem (1 = active).
	NavReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "roverpilot_nav_ready",
			Help: "Whether the navigation subsystem reports itself active (1) or not (0).",
		},
	)

	// PerceptionObservationsTotal counts sensor observations. result: recorded, ignored, dropped.
	PerceptionObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverpilot_perception_observations_total",
			Help: "Total number of sensor observations by sensor and handling result.",
		},
		[]string{"sensor", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		MissionsTotal,
		MissionActive,
		LegsTotal,
		LegDuration,
		NavGoalsTotal,
		NavCancelsTotal,
		NavReady,
		PerceptionObservationsTotal,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// BoolGauge converts a readiness flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
