package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends event payloads to an exchange.
type Publisher interface {
	// Publish sends body and waits for the broker confirmation.
	Publish(ctx context.Context, body []byte) error
}

// Subscriber receives event payloads from an exchange.
type Subscriber interface {
	// Consume returns deliveries until ctx ends. Each delivery must be acked
	// or nacked by the caller.
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ClientInterface is the full surface of Client, for dependency injection.
type ClientInterface interface {
	Publisher
	Subscriber
	WaitReady(ctx context.Context) error
	Close() error
}

var _ ClientInterface = (*Client)(nil)
