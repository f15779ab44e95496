package bus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/geo"
	mqtttopic "github.com/autopeer-io/roverpilot/pkg/mqtt/topic"
)

var errNotMounted = errors.New("module is not mounted on a bus")

type triggerMessage struct {
	Mode core.VehicleMode `json:"mode"`
}

type detectionMessage struct {
	Enabled bool `json:"enabled"`
}

type markerMessage struct {
	Lat  float64         `json:"lat"`
	Lon  float64         `json:"lon"`
	Kind core.MarkerKind `json:"kind"`
}

// Vehicle publishes the fire-and-forget requests of a mission: state triggers, the object detector
// toggle and visualization markers.
type Vehicle struct {
	sender Sender
}

var (
	_ Module          = (*Vehicle)(nil)
	_ core.Vehicle    = (*Vehicle)(nil)
	_ core.Detector   = (*Vehicle)(nil)
	_ core.MarkerSink = (*Vehicle)(nil)
)

func NewVehicle() *Vehicle {
	return &Vehicle{}
}

func (v *Vehicle) Name() string {
	return "Vehicle"
}

func (v *Vehicle) Setup(ctx context.Context, sender Sender) error {
	v.sender = sender
	return nil
}

func (v *Vehicle) Routes() map[EventType]HandlerFunc {
	return nil
}

func (v *Vehicle) Trigger(ctx context.Context, mode core.VehicleMode) error {
	return v.send(ctx, EventVehicleTrigger, triggerMessage{Mode: mode})
}

func (v *Vehicle) SetObjectDetection(ctx context.Context, enabled bool) error {
	return v.send(ctx, EventObjectDetection, detectionMessage{Enabled: enabled})
}

func (v *Vehicle) PublishWaypoint(ctx context.Context, p geo.LatLng, kind core.MarkerKind) error {
	return v.send(ctx, EventVizWaypoint, markerMessage{Lat: p.Lat, Lon: p.Lon, Kind: kind})
}

func (v *Vehicle) send(ctx context.Context, event EventType, msg any) error {
	if v.sender == nil {
		return errNotMounted
	}
	return v.sender.SendJSON(ctx, event, msg)
}

// IdleWill returns the last will that puts the vehicle back into idle if the executor drops off the
// broker without a clean disconnect.
func IdleWill(builder *mqtttopic.Builder, vid string) (topic string, payload []byte) {
	payload, _ = json.Marshal(triggerMessage{Mode: core.ModeIdle})
	return builder.Build(events[EventVehicleTrigger].segment, vid), payload
}
