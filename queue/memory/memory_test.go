package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/rakh-records/queue"
)

func TestPublishReceiveOrder(t *testing.T) {
	q := New(8)
	ctx := context.Background()

	for _, body := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, []byte(body)); err != nil {
			t.Fatalf("Publish(%s) error = %v", body, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		msg, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if string(msg.Body) != want {
			t.Fatalf("Receive() = %q, want %q", msg.Body, want)
		}
		if err := q.Ack(ctx, msg); err != nil {
			t.Fatalf("Ack() error = %v", err)
		}
	}
	if q.Acked() != 3 {
		t.Fatalf("Acked() = %d, want 3", q.Acked())
	}
}

func TestPublishCopiesBody(t *testing.T) {
	q := New(1)
	body := []byte("abc")
	if err := q.Publish(context.Background(), body); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	body[0] = 'x'
	msg, _ := q.Receive(context.Background())
	if string(msg.Body) != "abc" {
		t.Fatalf("body aliased: %q", msg.Body)
	}
}

func TestPublishBlocksUntilContextDone(t *testing.T) {
	q := New(1)
	if err := q.Publish(context.Background(), []byte("fill")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, []byte("overflow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Publish() on full queue = %v, want DeadlineExceeded", err)
	}
}

func TestReceiveHonoursContext(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Receive() = %v, want Canceled", err)
	}
}

func TestCloseDrainsThenStops(t *testing.T) {
	q := New(4)
	ctx := context.Background()
	_ = q.Publish(ctx, []byte("left"))

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = q.Close()

	if err := q.Publish(ctx, []byte("late")); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("Publish() after Close = %v, want ErrClosed", err)
	}
	msg, err := q.Receive(ctx)
	if err != nil || string(msg.Body) != "left" {
		t.Fatalf("Receive() = %q, %v; want drained message", msg.Body, err)
	}
	if _, err := q.Receive(ctx); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("Receive() after drain = %v, want ErrClosed", err)
	}
}

func TestCloseReleasesBlockedPublisher(t *testing.T) {
	q := New(1)
	_ = q.Publish(context.Background(), []byte("fill"))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Publish(context.Background(), []byte("blocked")) }()

	time.Sleep(20 * time.Millisecond)
	_ = q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, queue.ErrClosed) {
			t.Fatalf("blocked Publish() = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked publisher was not released")
	}
}
