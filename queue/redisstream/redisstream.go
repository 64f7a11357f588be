// Package redisstream is a durable queue on Redis Streams. Publishers XADD to
// a stream; a single consumer group reads it with XREADGROUP and acknowledges
// with XACK, which gives at-least-once delivery: entries read but not acked
// before a crash are replayed to the same consumer on restart.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/rakh-records/queue"
)

const bodyField = "body"

var ErrNilClient = errors.New("redisstream: nil client")

type Config struct {
	Client goredis.UniversalClient
	Stream string
	// MaxLen trims the stream approximately on publish. Zero keeps all entries.
	MaxLen int64
}

type ConsumerConfig struct {
	Config
	Group    string
	Consumer string
	// Block bounds each XREADGROUP wait so Receive can observe ctx.
	Block time.Duration
}

func (c Config) validate() error {
	if c.Client == nil {
		return ErrNilClient
	}
	if c.Stream == "" {
		return errors.New("redisstream: stream is required")
	}
	return nil
}

// Publisher implements queue.Publisher.
type Publisher struct {
	cfg Config
}

var _ queue.Publisher = (*Publisher)(nil)

func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg}, nil
}

func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	args := &goredis.XAddArgs{
		Stream: p.cfg.Stream,
		Values: map[string]any{bodyField: body},
	}
	if p.cfg.MaxLen > 0 {
		args.MaxLen = p.cfg.MaxLen
		args.Approx = true
	}
	if err := p.cfg.Client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisstream: xadd: %w", err)
	}
	return nil
}

// Subscriber implements queue.Subscriber for one consumer in a group. It is
// meant for a single goroutine.
type Subscriber struct {
	cfg ConsumerConfig

	mu    sync.Mutex
	ready bool
	// cursor walks this consumer's pending entries; empty once they are
	// exhausted and reads switch to new entries.
	cursor string
	buf    []goredis.XMessage
}

var _ queue.Subscriber = (*Subscriber)(nil)

func NewSubscriber(cfg ConsumerConfig) (*Subscriber, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Group == "" || cfg.Consumer == "" {
		return nil, errors.New("redisstream: group and consumer are required")
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &Subscriber{cfg: cfg, cursor: "0"}, nil
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (s *Subscriber) EnsureGroup(ctx context.Context) error {
	err := s.cfg.Client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redisstream: create group: %w", err)
	}
	return nil
}

func (s *Subscriber) Receive(ctx context.Context) (queue.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		if err := s.EnsureGroup(ctx); err != nil {
			return queue.Message{}, err
		}
		s.ready = true
	}
	for len(s.buf) == 0 {
		if err := ctx.Err(); err != nil {
			return queue.Message{}, err
		}
		if err := s.fill(ctx); err != nil {
			return queue.Message{}, err
		}
	}
	xm := s.buf[0]
	s.buf = s.buf[1:]
	return toMessage(xm), nil
}

func (s *Subscriber) fill(ctx context.Context) error {
	start := ">"
	if s.cursor != "" {
		start = s.cursor
	}
	streams, err := s.cfg.Client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, start},
		Count:    16,
		Block:    s.cfg.Block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("redisstream: xreadgroup: %w", err)
	}
	n := 0
	for _, st := range streams {
		for _, xm := range st.Messages {
			if s.cursor != "" {
				s.cursor = xm.ID
			}
			// pending entries trimmed from the stream come back without values
			if xm.Values == nil {
				_ = s.cfg.Client.XAck(ctx, s.cfg.Stream, s.cfg.Group, xm.ID).Err()
				continue
			}
			s.buf = append(s.buf, xm)
		}
		n += len(st.Messages)
	}
	if s.cursor != "" && n == 0 {
		s.cursor = ""
	}
	return nil
}

func (s *Subscriber) Ack(ctx context.Context, msg queue.Message) error {
	if err := s.cfg.Client.XAck(ctx, s.cfg.Stream, s.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("redisstream: xack %s: %w", msg.ID, err)
	}
	return nil
}

func toMessage(xm goredis.XMessage) queue.Message {
	msg := queue.Message{ID: xm.ID}
	switch v := xm.Values[bodyField].(type) {
	case string:
		msg.Body = []byte(v)
	case []byte:
		msg.Body = v
	}
	return msg
}
