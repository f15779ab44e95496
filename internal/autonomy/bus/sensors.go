package bus

import (
	"context"

	"github.com/autopeer-io/roverpilot/internal/autonomy/perception"
	"github.com/autopeer-io/roverpilot/pkg/geo"
)

type fixMessage struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Sensors routes the sensor streams into the perception tracker. Handlers never block on navigation.
type Sensors struct {
	tracker *perception.Tracker
}

var _ Module = (*Sensors)(nil)

func NewSensors(tracker *perception.Tracker) *Sensors {
	return &Sensors{tracker: tracker}
}

func (s *Sensors) Name() string {
	return "Sensors"
}

func (s *Sensors) Setup(ctx context.Context, sender Sender) error {
	return nil
}

func (s *Sensors) Routes() map[EventType]HandlerFunc {
	return map[EventType]HandlerFunc{
		EventGPS:       JSONAdapter(s.HandleFix),
		EventTransform: JSONAdapter(s.HandleTransform),
		EventAruco:     JSONAdapter(s.HandleMarkers),
		EventObjects:   JSONAdapter(s.HandleObjects),
	}
}

func (s *Sensors) HandleFix(ctx context.Context, msg *fixMessage) error {
	s.tracker.HandleFix(geo.LatLng{Lat: msg.Lat, Lon: msg.Lon})
	return nil
}

func (s *Sensors) HandleTransform(ctx context.Context, msg *perception.Transform) error {
	s.tracker.HandleTransform(*msg)
	return nil
}

func (s *Sensors) HandleMarkers(ctx context.Context, msg *perception.MarkerObservation) error {
	s.tracker.HandleMarkers(*msg)
	return nil
}

func (s *Sensors) HandleObjects(ctx context.Context, msg *perception.ObjectObservation) error {
	s.tracker.HandleObjects(*msg)
	return nil
}
