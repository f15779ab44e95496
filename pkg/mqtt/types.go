package mqtt

import (
	"context"
)

// MessageHandler processes one inbound message. Handlers run one at a time on the client's single
// dispatch goroutine, in the order the broker delivered the messages, so a handler must not block:
// a slow handler delays every later message on every subscription.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a broker connection shared by every publisher and subscriber of the process.
type Client interface {
	// Start connects in the background and returns at once; AwaitConnection waits for the first
	// connection. The connection and the dispatch goroutine live until ctx ends, so callers that
	// must publish during shutdown pass a context that outlives the shutdown signal.
	Start(ctx context.Context) error

	// Disconnect sends DISCONNECT, which suppresses the will message.
	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe routes messages matching filter to handler. A later Subscribe on the same filter
	// replaces the handler. Subscriptions are restored after every reconnect.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	// Unsubscribe drops the handler of filter.
	Unsubscribe(ctx context.Context, filter string) error

	// AwaitConnection blocks until the client is connected or ctx ends.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
