package perception

import (
	"errors"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/internal/pkg/metrics"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

// Sensor names used in metrics and logs.
const (
	SensorGPS       = "gps"
	SensorTransform = "tf"
	SensorAruco     = "aruco"
	SensorObjects   = "objects"
)

// Observation handling results used in metrics.
const (
	resultRecorded = "recorded"
	resultIgnored  = "ignored"
	resultDropped  = "dropped"
)

// Marker is one detected fiducial marker in the sensor frame.
type Marker struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// MarkerObservation is one frame of marker detections.
type MarkerObservation struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
	Markers []Marker  `json:"markers"`
}

// Object is one detected object in the sensor frame.
type Object struct {
	Label    string     `json:"label"`
	Position [3]float64 `json:"position"`
}

// ObjectObservation is one frame of object detections.
type ObjectObservation struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
	Objects []Object  `json:"objects"`
}

// Tracker turns sensor streams into PerceptionCache writes. Its handlers are called from transport
// goroutines: they never block on navigation and never return errors. Observations that do not match
// the active leg are ignored, observations that cannot be placed in the absolute frame are dropped.
type Tracker struct {
	cache    *Cache
	frames   *TransformBuffer
	location *Localization
	logger   log.Logger
}

// NewTracker returns a Tracker writing into cache.
func NewTracker(cache *Cache, frames *TransformBuffer, location *Localization, logger log.Logger) *Tracker {
	return &Tracker{
		cache:    cache,
		frames:   frames,
		location: location,
		logger:   logger,
	}
}

// HandleFix records a filtered GPS fix.
func (t *Tracker) HandleFix(p geo.LatLng) {
	if !t.location.Update(p) {
		observe(SensorGPS, resultDropped)
		return
	}
	observe(SensorGPS, resultRecorded)
}

// HandleTransform stores a sensor frame transform.
func (t *Tracker) HandleTransform(tf Transform) {
	if tf.FrameID == "" {
		observe(SensorTransform, resultDropped)
		return
	}
	t.frames.Add(tf)
	observe(SensorTransform, resultRecorded)
}

// HandleMarkers records the active leg's marker, if it is in view.
func (t *Tracker) HandleMarkers(obs MarkerObservation) {
	b, ok := t.cache.ActiveLeg()
	if !ok {
		observe(SensorAruco, resultIgnored)
		return
	}
	kind, ok := b.Leg.Kind.(core.MarkerSearch)
	if !ok {
		observe(SensorAruco, resultIgnored)
		return
	}

	for _, m := range obs.Markers {
		if m.ID != kind.TagID {
			continue
		}
		t.record(SensorAruco, b, obs.FrameID, obs.Stamp, m.X, m.Y)
		return
	}
	observe(SensorAruco, resultIgnored)
}

// HandleObjects records the active leg's object, if it is in view.
func (t *Tracker) HandleObjects(obs ObjectObservation) {
	b, ok := t.cache.ActiveLeg()
	if !ok {
		observe(SensorObjects, resultIgnored)
		return
	}
	kind, ok := b.Leg.Kind.(core.ObjectSearch)
	if !ok {
		observe(SensorObjects, resultIgnored)
		return
	}

	for _, o := range obs.Objects {
		if o.Label != kind.Label {
			continue
		}
		t.record(SensorObjects, b, obs.FrameID, obs.Stamp, o.Position[0], o.Position[1])
		return
	}
	observe(SensorObjects, resultIgnored)
}

func (t *Tracker) record(sensor string, b Binding, frame string, stamp time.Time, x, y float64) {
	pose, err := t.locate(frame, stamp, x, y)
	if err != nil {
		if !errors.Is(err, core.ErrTransformUnavailable) {
			t.logger.Error(err, "Unexpected frame conversion error", "sensor", sensor)
		}
		t.logger.Debug("Dropping observation", "sensor", sensor, "leg", b.Leg.Name, "reason", err.Error())
		observe(sensor, resultDropped)
		return
	}

	if !t.cache.Record(b, pose) {
		observe(sensor, resultIgnored)
		return
	}
	t.logger.Debug("Target located", "sensor", sensor, "leg", b.Leg.Name, "pose", pose.String())
	observe(sensor, resultRecorded)
}

func (t *Tracker) locate(frame string, stamp time.Time, x, y float64) (geo.LatLng, error) {
	tf, err := t.frames.Lookup(frame, stamp)
	if err != nil {
		return geo.LatLng{}, err
	}
	east, north := tf.Apply(x, y)
	return t.location.ToGeodetic(east, north)
}

func observe(sensor, result string) {
	metrics.PerceptionObservationsTotal.WithLabelValues(sensor, result).Inc()
}
