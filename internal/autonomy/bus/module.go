package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autopeer-io/roverpilot/internal/pkg/mqtt/paths"
)

type EventType string

// Outbound events.
const (
	EventNavGoal         EventType = "nav.goal"
	EventNavCancel       EventType = "nav.cancel"
	EventVehicleTrigger  EventType = "vehicle.trigger"
	EventObjectDetection EventType = "perception.objdet"
	EventVizWaypoint     EventType = "viz.waypoint"
	EventMissionFeedback EventType = "mission.feedback"
)

// Inbound events.
const (
	EventNavGoalAck   EventType = "nav.goal.ack"
	EventNavStatus    EventType = "nav.status"
	EventNavFeedback  EventType = "nav.feedback"
	EventNavLifecycle EventType = "nav.lifecycle"
	EventGPS          EventType = "sensor.gps"
	EventTransform    EventType = "sensor.tf"
	EventAruco        EventType = "sensor.aruco"
	EventObjects      EventType = "sensor.objects"
)

type route struct {
	segment string
	retain  bool
}

// events maps every event to its topic segment. Mode and detector toggles are retained so a
// restarted subsystem picks up the current state.
var events = map[EventType]route{
	EventNavGoal:         {segment: paths.NavGoal},
	EventNavCancel:       {segment: paths.NavCancel},
	EventVehicleTrigger:  {segment: paths.VehicleTrigger, retain: true},
	EventObjectDetection: {segment: paths.ObjectDetection, retain: true},
	EventVizWaypoint:     {segment: paths.VizWaypoint},
	EventMissionFeedback: {segment: paths.MissionFeedback},

	EventNavGoalAck:   {segment: paths.NavGoalAck},
	EventNavStatus:    {segment: paths.NavStatus},
	EventNavFeedback:  {segment: paths.NavFeedback},
	EventNavLifecycle: {segment: paths.NavLifecycle},
	EventGPS:          {segment: paths.GPS},
	EventTransform:    {segment: paths.Transform},
	EventAruco:        {segment: paths.Aruco},
	EventObjects:      {segment: paths.Objects},
}

// Sender publishes events for the vehicle the bus is bound to.
type Sender interface {
	Send(ctx context.Context, event EventType, payload []byte) error
	SendJSON(ctx context.Context, event EventType, msg any) error
}

type HandlerFunc func(ctx context.Context, payload []byte) error

// Module is one protocol participant wired onto the bus.
type Module interface {
	Name() string

	Setup(ctx context.Context, sender Sender) error

	Routes() map[EventType]HandlerFunc
}

// JSONAdapter decodes the payload into a T before calling handler.
func JSONAdapter[T any](handler func(ctx context.Context, msg *T) error) HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		msg := new(T)
		if err := json.Unmarshal(payload, msg); err != nil {
			return fmt.Errorf("json unmarshal failed: %w", err)
		}
		return handler(ctx, msg)
	}
}
