package transport

import (
	"context"
	"sync"

	"bons/internal/errors"
)

// pipeDepth is how many payloads may wait unread on one direction.
const pipeDepth = 4

// End is one side of an in-memory channel pair.
type End struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected ends. Closing either end closes both.
func Pipe() (*End, *End) {
	ab := make(chan []byte, pipeDepth)
	ba := make(chan []byte, pipeDepth)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &End{in: ba, out: ab, done: done, once: once}
	b := &End{in: ab, out: ba, done: done, once: once}
	return a, b
}

// Send queues a copy of payload for the other end.
func (e *End) Send(ctx context.Context, payload []byte) error {
	msg := append([]byte(nil), payload...)
	select {
	case <-e.done:
		return errors.ErrTransportUnavailable.New("pipe closed")
	default:
	}
	select {
	case e.out <- msg:
		return nil
	case <-e.done:
		return errors.ErrTransportUnavailable.New("pipe closed")
	case <-ctx.Done():
		return ctxError(ctx, "send")
	}
}

// Receive waits for the next payload from the other end.
func (e *End) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-e.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-e.in:
		return msg, nil
	case <-e.done:
		return nil, errors.ErrTransportUnavailable.New("pipe closed")
	case <-ctx.Done():
		return nil, ctxError(ctx, "receive")
	}
}

// Close shuts both ends.
func (e *End) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}

var _ Channel = (*End)(nil)
