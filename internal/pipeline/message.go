package pipeline

import "context"

// Message is an item on a stage queue: either a value or the close signal
// that ends the stream.
type Message[T any] struct {
	value  T
	closed bool
}

// Data wraps v as a value message.
func Data[T any](v T) Message[T] { return Message[T]{value: v} }

// Close returns the end-of-stream message.
func Close[T any]() Message[T] { return Message[T]{closed: true} }

// IsClose reports whether m ends the stream.
func (m Message[T]) IsClose() bool { return m.closed }

// Value returns the wrapped value. It is the zero value for Close.
func (m Message[T]) Value() T { return m.value }

// send blocks until m is queued or ctx is done.
func send[T any](ctx context.Context, q chan<- Message[T], m Message[T]) error {
	select {
	case q <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recv blocks until a message arrives or ctx is done.
func recv[T any](ctx context.Context, q <-chan Message[T]) (Message[T], error) {
	select {
	case m := <-q:
		return m, nil
	case <-ctx.Done():
		return Message[T]{}, ctx.Err()
	}
}
