package recordcache

import (
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is the lifetime of both namespaces unless overridden.
const DefaultTTL = time.Hour

// Options configures a Cache.
type Options struct {
	// TTL applies to record:{id} and all-records entries.
	TTL time.Duration
	// Codec names the value encoding: "json" (default), "msgpack" or "cbor".
	Codec string
	// Prefix is prepended to every key, e.g. "gateway:".
	Prefix string
	// OpTimeout bounds each backend call. A timed-out call is a miss/no-op.
	OpTimeout time.Duration
	// MaxEntryBytes rejects larger payloads on decode. Zero disables it.
	MaxEntryBytes int
	Now           func() time.Time
	Logger        *zap.Logger
	Hooks         Hooks
}

type Option func(*Options)

func WithTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.TTL = d
		}
	}
}

func WithCodec(name string) Option {
	return func(o *Options) { o.Codec = name }
}

func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

func WithOpTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.OpTimeout = d
		}
	}
}

func WithMaxEntryBytes(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntryBytes = n
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(o *Options) {
		if h != nil {
			o.Hooks = h
		}
	}
}

func defaultOptions() Options {
	return Options{
		TTL:       DefaultTTL,
		OpTimeout: 500 * time.Millisecond,
		Now:       time.Now,
		Logger:    zap.NewNop(),
		Hooks:     NopHooks{},
	}
}
