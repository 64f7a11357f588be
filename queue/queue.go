// Package queue defines the one-way transport between the gateway, which
// publishes encoded commands, and the writer, which consumes them. There is
// no reply channel.
package queue

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("queue: closed")

// Message is one delivery. ID is transport-specific and only meaningful to
// Ack.
type Message struct {
	ID   string
	Body []byte
}

// Publisher hands a payload to a durable queue. A nil error means the queue
// accepted it; it says nothing about when or whether it will be applied.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Subscriber yields deliveries in queue order. Receive blocks until a message
// arrives or ctx is done. A message that is not acknowledged may be delivered
// again.
type Subscriber interface {
	Receive(ctx context.Context) (Message, error)
	Ack(ctx context.Context, msg Message) error
}
