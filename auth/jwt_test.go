package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newSigner(t *testing.T, opts ...Option) (*Signer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, err := NewSigner(testSecret, append([]Option{WithClock(clock.Now), WithLeeway(0)}, opts...)...)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return s, clock
}

func TestNewSignerRejectsWeakSecrets(t *testing.T) {
	if _, err := NewSigner(nil); !errors.Is(err, ErrJWTMissingSigningKey) {
		t.Fatalf("NewSigner(nil) error = %v", err)
	}
	if _, err := NewSigner([]byte("short")); !errors.Is(err, ErrJWTWeakSigningKey) {
		t.Fatalf("NewSigner(short) error = %v", err)
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	s, _ := newSigner(t)
	ctx := context.Background()

	token, err := s.Issue(ctx, "svc-1", ScopeWrite)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	parsed, err := s.Parse(ctx, token.Raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Claims.Subject != "svc-1" || !parsed.Claims.HasScope(ScopeWrite) {
		t.Fatalf("Parse() claims = %+v", parsed.Claims)
	}
	if parsed.Claims.ID == "" || parsed.Claims.ID != token.Claims.ID {
		t.Fatalf("Parse() id = %q, want %q", parsed.Claims.ID, token.Claims.ID)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	s, _ := newSigner(t)
	ctx := context.Background()
	token, _ := s.Issue(ctx, "svc-1")

	parts := strings.Split(token.Raw, ".")
	forged, _ := encodeSegment(jwtPayload{Subject: "admin", Issuer: "rakh-records"})

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"format", "a.b", ErrJWTInvalidFormat},
		{"payload", parts[0] + "." + forged + "." + parts[2], ErrJWTInvalidSignature},
		{"signature", parts[0] + "." + parts[1] + ".AAAA", ErrJWTInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Parse(ctx, tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}

	other, _ := NewSigner([]byte("fedcba9876543210fedcba9876543210"))
	if _, err := other.Parse(ctx, token.Raw); !errors.Is(err, ErrJWTInvalidSignature) {
		t.Fatalf("Parse() with other secret error = %v", err)
	}
}

func TestParseRejectsUnsupportedAlgorithm(t *testing.T) {
	s, _ := newSigner(t)
	header, _ := encodeSegment(jwtHeader{Algorithm: "none", Type: "JWT"})
	payload, _ := encodeSegment(jwtPayload{Subject: "x"})
	if _, err := s.Parse(context.Background(), header+"."+payload+"."); !errors.Is(err, ErrJWTUnsupportedAlgo) {
		t.Fatalf("Parse() error = %v, want ErrJWTUnsupportedAlgo", err)
	}
}

func TestParseExpiry(t *testing.T) {
	s, clock := newSigner(t, WithTTL(time.Minute))
	ctx := context.Background()
	token, _ := s.Issue(ctx, "svc-1")

	clock.t = clock.t.Add(time.Minute)
	if _, err := s.Parse(ctx, token.Raw); err != nil {
		t.Fatalf("Parse() at expiry error = %v", err)
	}
	clock.t = clock.t.Add(time.Second)
	if _, err := s.Parse(ctx, token.Raw); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("Parse() after expiry error = %v, want ErrJWTExpired", err)
	}
}

func TestParseIssuerMismatch(t *testing.T) {
	a, _ := newSigner(t, WithIssuer("a"))
	b, _ := newSigner(t, WithIssuer("b"))
	token, _ := a.Issue(context.Background(), "svc-1")
	if _, err := b.Parse(context.Background(), token.Raw); !errors.Is(err, ErrJWTInvalidIssuer) {
		t.Fatalf("Parse() error = %v, want ErrJWTInvalidIssuer", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s, _ := newSigner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Issue(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Issue() error = %v", err)
	}
}
