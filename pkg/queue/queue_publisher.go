// Package queue publishes block announcements to a durable queue so
// downstream consumers can follow the synced chain.
//
// Implementations require Close to be called exactly once to flush
// in-flight messages and release resources.
package queue

import "context"

// Msg is a single queue message. Key selects the partition when the
// backend supports keyed partitioning.
type Msg struct {
	Topic string
	Key   []byte
	Value []byte
}

type QueuePublisher interface {
	// Publish publishes a message to the underlying queue. Implementations
	// may block until delivery is confirmed.
	Publish(ctx context.Context, message Msg) error

	// Close stops the publisher and flushes in-flight messages. Canceling
	// the context may result in message loss.
	Close(ctx context.Context)
}
