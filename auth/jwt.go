package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJWTInvalidFormat     = errors.New("auth: invalid jwt format")
	ErrJWTInvalidSignature  = errors.New("auth: invalid jwt signature")
	ErrJWTUnsupportedAlgo   = errors.New("auth: unsupported jwt algorithm")
	ErrJWTExpired           = errors.New("auth: jwt expired")
	ErrJWTNotYetValid       = errors.New("auth: jwt not yet valid")
	ErrJWTInvalidIssuer     = errors.New("auth: invalid jwt issuer")
	ErrJWTMissingSigningKey = errors.New("auth: missing signing key")
	ErrJWTWeakSigningKey    = errors.New("auth: signing key too short")
)

const algHS256 = "HS256"

type jwtHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type jwtPayload struct {
	ID        string   `json:"jti,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
	Scopes    []string `json:"scp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
}

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	opts   Options
}

var _ TokenParser = (*Signer)(nil)

func NewSigner(secret []byte, opts ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrJWTMissingSigningKey
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrJWTWeakSigningKey, MinSecretLength)
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Signer{secret: append([]byte(nil), secret...), opts: cfg}, nil
}

// Issue mints a token for subject carrying the given scopes.
func (s *Signer) Issue(ctx context.Context, subject string, scopes ...string) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	now := s.opts.Now().UTC().Truncate(time.Second)
	claims := Claims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    s.opts.Issuer,
		Scopes:    append([]string(nil), scopes...),
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(s.opts.TTL),
	}

	headerSeg, err := encodeSegment(jwtHeader{Algorithm: algHS256, Type: "JWT"})
	if err != nil {
		return Token{}, err
	}
	payloadSeg, err := encodeSegment(payloadFromClaims(claims))
	if err != nil {
		return Token{}, err
	}
	input := headerSeg + "." + payloadSeg
	return Token{Raw: input + "." + s.sign(input), Claims: claims}, nil
}

// Parse verifies signature, issuer and validity window.
func (s *Signer) Parse(ctx context.Context, raw string) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Token{}, ErrJWTInvalidFormat
	}

	var header jwtHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return Token{}, ErrJWTInvalidFormat
	}
	if header.Algorithm != algHS256 {
		return Token{}, ErrJWTUnsupportedAlgo
	}
	provided, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Token{}, ErrJWTInvalidSignature
	}
	expected, _ := base64.RawURLEncoding.DecodeString(s.sign(parts[0] + "." + parts[1]))
	if !hmac.Equal(provided, expected) {
		return Token{}, ErrJWTInvalidSignature
	}

	var payload jwtPayload
	if err := decodeSegment(parts[1], &payload); err != nil {
		return Token{}, ErrJWTInvalidFormat
	}
	claims := claimsFromPayload(payload)
	if err := s.validate(claims); err != nil {
		return Token{}, err
	}
	return Token{Raw: raw, Claims: claims}, nil
}

func (s *Signer) validate(c Claims) error {
	now := s.opts.Now()
	if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt.Add(s.opts.Leeway)) {
		return ErrJWTExpired
	}
	if !c.NotBefore.IsZero() && now.Add(s.opts.Leeway).Before(c.NotBefore) {
		return ErrJWTNotYetValid
	}
	if s.opts.Issuer != "" && c.Issuer != s.opts.Issuer {
		return ErrJWTInvalidIssuer
	}
	return nil
}

func (s *Signer) sign(input string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func payloadFromClaims(c Claims) jwtPayload {
	return jwtPayload{
		ID:        c.ID,
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Scopes:    c.Scopes,
		IssuedAt:  unixOrZero(c.IssuedAt),
		ExpiresAt: unixOrZero(c.ExpiresAt),
		NotBefore: unixOrZero(c.NotBefore),
	}
}

func claimsFromPayload(p jwtPayload) Claims {
	return Claims{
		ID:        p.ID,
		Subject:   p.Subject,
		Issuer:    p.Issuer,
		Scopes:    p.Scopes,
		IssuedAt:  timeFromUnix(p.IssuedAt),
		ExpiresAt: timeFromUnix(p.ExpiresAt),
		NotBefore: timeFromUnix(p.NotBefore),
	}
}

func encodeSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSegment(segment string, dest any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeFromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
