// Package memory is an in-process queue over a buffered channel, for tests
// and single-binary deployments. It is not durable.
package memory

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/adeilh/rakh-records/queue"
)

const defaultBuffer = 1024

// Queue implements queue.Publisher and queue.Subscriber.
type Queue struct {
	ch    chan queue.Message
	seq   atomic.Uint64
	acked atomic.Uint64

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ queue.Publisher  = (*Queue)(nil)
	_ queue.Subscriber = (*Queue)(nil)
)

// New builds a queue holding up to buffer pending messages. Publish blocks
// while the buffer is full.
func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Queue{ch: make(chan queue.Message, buffer), done: make(chan struct{})}
}

func (q *Queue) Publish(ctx context.Context, body []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return queue.ErrClosed
	}
	msg := queue.Message{
		ID:   strconv.FormatUint(q.seq.Add(1), 10),
		Body: append([]byte(nil), body...),
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return queue.ErrClosed
	}
}

// Receive returns the next message. After Close it drains what is left and
// then returns queue.ErrClosed.
func (q *Queue) Receive(ctx context.Context) (queue.Message, error) {
	select {
	case msg, ok := <-q.ch:
		if !ok {
			return queue.Message{}, queue.ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return queue.Message{}, ctx.Err()
	}
}

func (q *Queue) Ack(context.Context, queue.Message) error {
	q.acked.Add(1)
	return nil
}

// Len reports messages waiting to be received.
func (q *Queue) Len() int { return len(q.ch) }

// Acked reports how many messages were acknowledged.
func (q *Queue) Acked() uint64 { return q.acked.Load() }

// Close stops accepting messages. It is safe to call more than once.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		// publishers blocked on a full buffer hold the read lock
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
	return nil
}
