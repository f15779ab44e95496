package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/roverpilot/pkg/log"
)

// inboundQueue bounds the messages received but not yet handed to a handler.
const inboundQueue = 256

var errNotStarted = errors.New("mqtt client not started")

type inbound struct {
	topic   string
	payload []byte
}

type subscription struct {
	qos     int
	handler MessageHandler
}

// pahoClient is the autopaho backed Client. Received messages are handed to the handlers by a single
// dispatcher goroutine, in the order the broker delivered them.
type pahoClient struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	connected atomic.Bool

	mu   sync.RWMutex
	subs map[string]subscription

	inbox chan inbound
	done  <-chan struct{}
}

// NewClient creates a new MQTT client implementing the Client interface.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:   cfg,
		subs:  map[string]subscription{},
		inbox: make(chan inbound, inboundQueue),
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	broker, _ := url.Parse(c.cfg.BrokerURL) // validated in NewClient

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.cfg.will(),
		OnConnectionUp:                c.onConnectionUp,
		OnConnectionDown:              c.onConnectionDown,
		OnConnectError: func(err error) {
			log.Error(err, "MQTT connection failed, retrying", "broker", c.cfg.BrokerURL)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				log.Error(err, "MQTT client error")
			},
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.receive},
		},
	}

	log.Info("Starting MQTT client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	c.done = ctx.Done()
	go c.dispatch(ctx)

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return err
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		log.Debug("MQTT disconnect was not clean", "error", err.Error())
	}
	c.connected.Store(false)
	log.Info("MQTT client disconnected")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{Topic: topic, QoS: byte(qos), Retain: retain, Payload: payload})
	return err
}

// Subscribe records the handler before sending SUBSCRIBE so a reconnect restores it even when the
// first attempt fails.
func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if _, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	log.Debug("Subscribed to topic", "topic", topic)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

// onConnectionUp restores every subscription in one SUBSCRIBE packet.
func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)

	c.mu.RLock()
	opts := make([]paho.SubscribeOptions, 0, len(c.subs))
	for topic, s := range c.subs {
		opts = append(opts, paho.SubscribeOptions{Topic: topic, QoS: byte(s.qos)})
	}
	c.mu.RUnlock()

	log.Info("MQTT connection established", "subscriptions", len(opts))
	if len(opts) == 0 {
		return
	}
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{Subscriptions: opts}); err != nil {
		log.Error(err, "Failed to restore subscriptions")
	}
}

func (c *pahoClient) onConnectionDown() bool {
	c.connected.Store(false)
	log.Warn("MQTT connection lost, reconnecting")
	return true
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	if d.Properties != nil && d.Properties.ReasonString != "" {
		log.Warn("MQTT server requested disconnect", "reason", d.Properties.ReasonString)
		return
	}
	log.Warn("MQTT server requested disconnect", "reasonCode", d.ReasonCode)
}

// receive runs on the paho reader goroutine and only queues the message.
func (c *pahoClient) receive(p paho.PublishReceived) (bool, error) {
	select {
	case c.inbox <- inbound{topic: p.Packet.Topic, payload: p.Packet.Payload}:
	case <-c.done:
	}
	return true, nil
}

func (c *pahoClient) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.inbox:
			c.deliver(ctx, msg)
		}
	}
}

func (c *pahoClient) deliver(ctx context.Context, msg inbound) {
	c.mu.RLock()
	var handlers []MessageHandler
	for filter, s := range c.subs {
		if Match(filter, msg.topic) {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug("Received message on unhandled topic", "topic", msg.topic)
		return
	}
	for _, h := range handlers {
		h(ctx, msg.topic, msg.payload)
	}
}
