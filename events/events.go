/*
Package events delivers inventory domain events to a message broker.

The inventory core publishes after every committed change (session opened
or closed, movement recorded or edited, stock low). Delivery is best-effort:
a broker outage is logged by the caller and never rolls back stock.

Payloads are the JSON encoding of the inventory event structs and the
subject / routing key is the topic name, e.g. "stockroom.movement.recorded".
*/
package events

import (
	"context"

	"github.com/warp/stockroom/inventory"
)

// Publisher is an inventory.Publisher that owns a broker connection.
type Publisher interface {
	inventory.Publisher
	Close() error
}

var (
	_ Publisher = (*NoopPublisher)(nil)
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = (*AMQPPublisher)(nil)
)

// NoopPublisher discards every event. Used when no broker is configured.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
