package auth

import "time"

// MinSecretLength is the shortest HS256 secret NewSigner accepts.
const MinSecretLength = 32

type Options struct {
	Issuer string
	// Leeway tolerates clock drift when checking exp and nbf.
	Leeway time.Duration
	TTL    time.Duration
	Now    func() time.Time
}

type Option func(*Options)

func WithIssuer(issuer string) Option {
	return func(o *Options) {
		o.Issuer = issuer
	}
}

func WithLeeway(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.Leeway = d
		}
	}
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.TTL = d
		}
	}
}

// WithClock injects a deterministic clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func defaultOptions() Options {
	return Options{
		Issuer: "rakh-records",
		Leeway: 30 * time.Second,
		TTL:    time.Hour,
		Now:    time.Now,
	}
}
