// Package auth signs and verifies the HMAC JWTs that guard the gateway's
// mutating routes.
package auth

import (
	"context"
	"slices"
	"time"
)

// ScopeWrite lets a bearer publish record commands.
const ScopeWrite = "records:write"

// Claims is the payload carried by a token.
type Claims struct {
	ID        string
	Subject   string
	Issuer    string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
}

// HasScope reports whether scope was granted.
func (c Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Token is a signed token and its verified claims.
type Token struct {
	Raw    string
	Claims Claims
}

type TokenParser interface {
	Parse(ctx context.Context, raw string) (Token, error)
}
