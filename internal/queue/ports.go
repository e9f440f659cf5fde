package queue

import "context"

// Publisher enqueues job messages onto a named work queue. Publish returns
// once the broker accepts the message; it never waits on consumer processing.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg JobMessage) error
	Close() error
}

// MessageHandler handles a consumed job message. A nil return acknowledges
// the message; a Permanent error dead-letters it; any other error requeues it.
type MessageHandler func(ctx context.Context, msg JobMessage) error

// Consumer consumes job messages from a queue until the context is done.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
