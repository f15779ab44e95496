// Package mqtttest provides an in-memory mqtt.Client that behaves like a single local broker.
package mqtttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/autopeer-io/roverpilot/pkg/mqtt"
)

// Message is one published message.
type Message struct {
	Topic   string
	QoS     int
	Retain  bool
	Payload []byte
}

// Client is an in-memory mqtt.Client. Publish delivers synchronously to every matching subscription
// and keeps retained messages for later subscribers. Like a real connection, it stops working once
// the context given to Start ends.
type Client struct {
	// PublishErr, when set, makes every Publish fail.
	PublishErr error

	mu        sync.Mutex
	life      context.Context
	started   bool
	connected bool
	subs      map[string]mqtt.MessageHandler
	retained  map[string][]byte
	published []Message
}

var _ mqtt.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		subs:     map[string]mqtt.MessageHandler{},
		retained: map[string][]byte{},
	}
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.life = ctx
	c.started, c.connected = true, true
	return nil
}

// usableLocked reports why the client cannot carry traffic. Callers hold c.mu.
func (c *Client) usableLocked() error {
	if !c.started {
		return errors.New("client not started")
	}
	if err := c.life.Err(); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}
	return nil
}

func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Client) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.PublishErr != nil {
		err := c.PublishErr
		c.mu.Unlock()
		return err
	}
	c.published = append(c.published, Message{Topic: topic, QoS: qos, Retain: retain, Payload: payload})
	if retain {
		c.retained[topic] = payload
	}
	handlers := c.matching(topic)
	c.mu.Unlock()

	for _, h := range handlers {
		h(ctx, topic, payload)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, filter string, qos int, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.subs[filter] = handler
	var replay []Message
	for topic, payload := range c.retained {
		if mqtt.Match(filter, topic) {
			replay = append(replay, Message{Topic: topic, Retain: true, Payload: payload})
		}
	}
	c.mu.Unlock()

	for _, m := range replay {
		handler(ctx, m.Topic, m.Payload)
	}
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, filter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, filter)
	return nil
}

func (c *Client) AwaitConnection(ctx context.Context) error {
	return ctx.Err()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Inject delivers a message as if another broker client had published it.
func (c *Client) Inject(topic string, payload []byte) {
	c.mu.Lock()
	handlers := c.matching(topic)
	c.mu.Unlock()

	for _, h := range handlers {
		h(context.Background(), topic, payload)
	}
}

// Published returns the payloads published on topic, in order.
func (c *Client) Published(topic string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, m := range c.published {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Messages returns every published message, in order.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

// Subscriptions returns the active subscription filters.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for f := range c.subs {
		out = append(out, f)
	}
	return out
}

func (c *Client) matching(topic string) []mqtt.MessageHandler {
	var out []mqtt.MessageHandler
	for filter, h := range c.subs {
		if mqtt.Match(filter, topic) {
			out = append(out, h)
		}
	}
	return out
}
