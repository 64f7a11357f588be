// Package config reads the binaries' settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Lookup returns an environment value and whether it was set.
type Lookup func(key string) (string, bool)

// Shared holds settings common to both binaries.
type Shared struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueStream   string
	QueueGroup    string
	QueueConsumer string
	StoreToken    string
	LogLevel      string
	LogDev        bool
}

type Gateway struct {
	Shared
	Addr          string
	StoreURL      string
	StoreTimeout  time.Duration
	Cache         string // "redis" or "memory"
	CacheCodec    string
	CacheTTL      time.Duration
	CachePrefix   string
	CommandFormat string
	JWTSecret     string
	CORSOrigins   []string
}

type Writer struct {
	Shared
	Addr        string
	Store       string // "postgres" or "bolt"
	PostgresDSN string
	BoltPath    string
}

// LoadGateway reads gateway settings. A nil lookup uses os.LookupEnv.
func LoadGateway(lookup Lookup) (Gateway, error) {
	r := reader{lookup: orEnv(lookup)}
	g := Gateway{
		Shared:        r.shared(),
		Addr:          r.str("GATEWAY_ADDR", ":8080"),
		StoreURL:      r.str("GATEWAY_STORE_URL", "http://127.0.0.1:8081"),
		StoreTimeout:  r.duration("GATEWAY_STORE_TIMEOUT", 5*time.Second),
		Cache:         strings.ToLower(r.str("GATEWAY_CACHE", "redis")),
		CacheCodec:    strings.ToLower(r.str("GATEWAY_CACHE_CODEC", "json")),
		CacheTTL:      r.duration("GATEWAY_CACHE_TTL", time.Hour),
		CachePrefix:   r.str("GATEWAY_CACHE_PREFIX", ""),
		CommandFormat: strings.ToLower(r.str("GATEWAY_COMMAND_FORMAT", "binary")),
		JWTSecret:     r.str("GATEWAY_JWT_SECRET", ""),
		CORSOrigins:   r.list("GATEWAY_CORS_ORIGINS"),
	}
	if r.err != nil {
		return Gateway{}, r.err
	}
	switch g.Cache {
	case "redis", "memory":
	default:
		return Gateway{}, fmt.Errorf("config: GATEWAY_CACHE must be redis or memory, got %q", g.Cache)
	}
	if g.CacheTTL <= 0 {
		return Gateway{}, fmt.Errorf("config: GATEWAY_CACHE_TTL must be positive")
	}
	return g, nil
}

// LoadWriter reads writer settings. A nil lookup uses os.LookupEnv.
func LoadWriter(lookup Lookup) (Writer, error) {
	r := reader{lookup: orEnv(lookup)}
	w := Writer{
		Shared:      r.shared(),
		Addr:        r.str("WRITER_ADDR", ":8081"),
		Store:       strings.ToLower(r.str("WRITER_STORE", "postgres")),
		PostgresDSN: r.str("WRITER_POSTGRES_DSN", ""),
		BoltPath:    r.str("WRITER_BOLT_PATH", "records.db"),
	}
	if r.err != nil {
		return Writer{}, r.err
	}
	switch w.Store {
	case "postgres":
		if w.PostgresDSN == "" {
			return Writer{}, fmt.Errorf("config: WRITER_POSTGRES_DSN is required for the postgres store")
		}
	case "bolt":
	default:
		return Writer{}, fmt.Errorf("config: WRITER_STORE must be postgres or bolt, got %q", w.Store)
	}
	return w, nil
}

type reader struct {
	lookup Lookup
	err    error
}

func (r *reader) shared() Shared {
	return Shared{
		RedisAddr:     r.str("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.int("REDIS_DB", 0),
		QueueStream:   r.str("QUEUE_STREAM", "records:commands"),
		QueueGroup:    r.str("QUEUE_GROUP", "record-writer"),
		QueueConsumer: r.str("QUEUE_CONSUMER", defaultConsumer()),
		StoreToken:    r.str("STORE_TOKEN", ""),
		LogLevel:      r.str("LOG_LEVEL", "info"),
		LogDev:        r.bool("LOG_DEV", false),
	}
}

func (r *reader) str(key, def string) string {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (r *reader) int(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

// list splits a comma separated value, dropping empty items.
func (r *reader) list(key string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// duration accepts Go duration strings ("90s") or whole seconds. Unitless
// fractions are rejected.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return def
	}
	v = strings.TrimSpace(v)
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if !strings.ContainsAny(v, "nuµmsh") {
		r.fail(key, fmt.Errorf("%q has no unit; use whole seconds or a duration like 1.5s", v))
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config: %s: %w", key, err)
	}
}

func orEnv(lookup Lookup) Lookup {
	if lookup == nil {
		return os.LookupEnv
	}
	return lookup
}

func defaultConsumer() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "writer-" + uuid.NewString()
}
