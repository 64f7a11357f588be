package httpx

import (
	"time"

	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown once Start's context ends.
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
	Middlewares     []MiddlewareFunc
	// ErrorMapper translates handler errors that are not echo HTTP errors.
	ErrorMapper ErrorMapper
	Validators  []Validator
	CORS        *middleware.CORSConfig
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:         ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Middlewares == nil {
		o.Middlewares = []MiddlewareFunc{
			RecoverMiddleware(),
			RequestIDMiddleware(),
			RequestLoggerMiddleware(o.Logger),
		}
	}
	return o
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// WithLogger sets the logger used for access logs and unexpected errors.
func WithLogger(l *zap.Logger) ServerOption {
	return func(o *ServerOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMiddlewares replaces the default recover, request id and access log stack.
func WithMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) {
		o.Middlewares = append([]MiddlewareFunc{}, mw...)
	}
}

func WithErrorMapper(m ErrorMapper) ServerOption {
	return func(o *ServerOptions) {
		if m != nil {
			o.ErrorMapper = m
		}
	}
}

// WithValidators installs request-level validators executed before route handlers.
func WithValidators(v ...Validator) ServerOption {
	return func(o *ServerOptions) {
		if len(v) > 0 {
			o.Validators = append([]Validator{}, v...)
		}
	}
}

// WithCORS enables CORS middleware using the provided configuration; if cfg is nil, the default config is used.
func WithCORS(cfg *middleware.CORSConfig) ServerOption {
	return func(o *ServerOptions) {
		if cfg == nil {
			def := middleware.DefaultCORSConfig
			o.CORS = &def
			return
		}
		o.CORS = cfg
	}
}

type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{Timeout: 10 * time.Second, Headers: map[string]string{"Content-Type": "application/json"}}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithHeaders adds headers sent on every request. Empty values are skipped.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		merged := make(map[string]string, len(o.Headers)+len(headers))
		for k, v := range o.Headers {
			merged[k] = v
		}
		for k, v := range headers {
			if v != "" {
				merged[k] = v
			}
		}
		o.Headers = merged
	}
}
