// Package bus connects the executor to the rover subsystems over MQTT: the navigation action
// protocol, vehicle triggers, the detector toggle, sensor streams and the observability topics.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/roverpilot/pkg/log"
	"github.com/autopeer-io/roverpilot/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/roverpilot/pkg/mqtt/topic"
)

const disconnectTimeout = 5 * time.Second

// Bus binds an MQTT client to one vehicle id.
type Bus struct {
	vehicleID string

	mc     mqtt.Client
	topics *mqtttopic.Builder

	mu     sync.Mutex
	routes map[string]HandlerFunc
	stop   context.CancelFunc
}

var _ Sender = (*Bus)(nil)

func New(client mqtt.Client, builder *mqtttopic.Builder, vid string) *Bus {
	return &Bus{
		mc:        client,
		topics:    builder,
		vehicleID: vid,
		routes:    make(map[string]HandlerFunc),
	}
}

func (b *Bus) Send(ctx context.Context, event EventType, payload []byte) error {
	r, ok := events[event]
	if !ok {
		return fmt.Errorf("unmapped event: %s", event)
	}
	return b.mc.Publish(ctx, b.topics.Build(r.segment, b.vehicleID), 1, r.retain, payload)
}

func (b *Bus) SendJSON(ctx context.Context, event EventType, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.Send(ctx, event, payload)
}

// Register routes inbound event to handler. It must be called before Start.
func (b *Bus) Register(event EventType, handler HandlerFunc) error {
	r, ok := events[event]
	if !ok {
		return fmt.Errorf("unmapped event: %s", event)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[b.topics.Build(r.segment, b.vehicleID)] = handler
	return nil
}

// Mount sets up every module and registers its routes.
func (b *Bus) Mount(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Setup(ctx, b); err != nil {
			return fmt.Errorf("module %s setup failed: %w", m.Name(), err)
		}
		for event, handler := range m.Routes() {
			if err := b.Register(event, handler); err != nil {
				return fmt.Errorf("module %s register event %s failed: %w", m.Name(), event, err)
			}
		}
	}
	return nil
}

func (b *Bus) IsConnected() bool {
	return b.mc.IsConnected()
}

// Start connects and subscribes every registered route. The connection outlives ctx so that
// shutdown messages can still be published; it lasts until Stop.
func (b *Bus) Start(ctx context.Context) error {
	connCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	if err := b.mc.Start(connCtx); err != nil {
		stop()
		return err
	}
	b.mu.Lock()
	b.stop = stop
	b.mu.Unlock()

	if err := b.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	routes := make(map[string]HandlerFunc, len(b.routes))
	for topic, handler := range b.routes {
		routes[topic] = handler
	}
	b.mu.Unlock()

	for topic, handler := range routes {
		err := b.mc.Subscribe(ctx, topic, 1, func(c context.Context, _ string, p []byte) {
			if handleErr := handler(c, p); handleErr != nil {
				log.Error(handleErr, "Handler execution failed", "topic", topic)
			}
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *Bus) Stop() {
	log.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	b.mc.Disconnect(ctx)

	b.mu.Lock()
	stop := b.stop
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
}
