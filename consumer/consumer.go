// Package consumer drains the command queue into the record store.
//
// Delivery is at least once. A redelivered create inserts a second record
// with a new id; commands carry no idempotency key.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/command"
	"github.com/adeilh/rakh-records/queue"
	"github.com/adeilh/rakh-records/recordstore"
)

// ErrMissingRecord is returned by Apply when an update or delete targets an
// id the store does not have. Run logs it at warn and drops the command.
var ErrMissingRecord = errors.New("consumer: record does not exist")

// Result describes an applied command.
type Result struct {
	Command command.Command
	// ID is the affected record; for creates, the id the store assigned.
	ID int64
}

type Consumer struct {
	sub   queue.Subscriber
	store recordstore.Writer
	log   *zap.Logger
	// backoff is the pause after a failed receive.
	backoff time.Duration
	// applied is called after each successful apply; nil in production.
	applied func(Result)
}

type Option func(*Consumer)

func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithReceiveBackoff sets the pause between receive attempts after a
// queue error.
func WithReceiveBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithAppliedHook observes every successfully applied command.
func WithAppliedHook(fn func(Result)) Option {
	return func(c *Consumer) {
		c.applied = fn
	}
}

func New(sub queue.Subscriber, store recordstore.Writer, opts ...Option) *Consumer {
	c := &Consumer{sub: sub, store: store, log: zap.NewNop(), backoff: time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.log = c.log.Named("consumer")
	return c
}

// Run receives, applies and acks messages in delivery order until ctx is
// done or the queue is closed. Messages that fail to decode or apply are
// logged, acked and dropped. Receive errors are retried after a backoff.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
		if err := c.sub.Ack(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("ack failed", zap.String("message", msg.ID), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	cmd, err := command.Decode(msg.Body)
	if err != nil {
		c.log.Error("dropping undecodable command", zap.String("message", msg.ID), zap.Error(err))
		return
	}
	res, err := c.Apply(ctx, cmd)
	switch {
	case errors.Is(err, ErrMissingRecord):
		c.log.Warn("dropping command for missing record", zap.String("message", msg.ID), zap.Stringer("command", cmd))
	case err != nil:
		c.log.Error("apply failed", zap.String("message", msg.ID), zap.Stringer("command", cmd), zap.Error(err))
	default:
		c.log.Info("command applied", zap.String("message", msg.ID), zap.Stringer("command", cmd), zap.Int64("id", res.ID))
		if c.applied != nil {
			c.applied(res)
		}
	}
}

// Apply runs one command against the store.
func (c *Consumer) Apply(ctx context.Context, cmd command.Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	res := Result{Command: cmd, ID: cmd.ID}
	switch cmd.Kind {
	case command.KindCreate:
		id, err := c.store.Create(ctx, cmd.Fields)
		if err != nil {
			return Result{}, fmt.Errorf("consumer: create: %w", err)
		}
		res.ID = id
	case command.KindUpdate:
		ok, err := c.store.Update(ctx, cmd.ID, cmd.Fields)
		if err != nil {
			return Result{}, fmt.Errorf("consumer: update %d: %w", cmd.ID, err)
		}
		if !ok {
			return Result{}, fmt.Errorf("%w: update %d", ErrMissingRecord, cmd.ID)
		}
	case command.KindDelete:
		ok, err := c.store.Delete(ctx, cmd.ID)
		if err != nil {
			return Result{}, fmt.Errorf("consumer: delete %d: %w", cmd.ID, err)
		}
		if !ok {
			return Result{}, fmt.Errorf("%w: delete %d", ErrMissingRecord, cmd.ID)
		}
	}
	return res, nil
}
