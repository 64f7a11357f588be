package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
	ErrMissingScope      = errors.New("auth: token lacks required scope")
	ErrNilParser         = errors.New("auth: middleware requires a token parser")
)

type TokenExtractor func(*http.Request) (string, error)

type ErrorHandler func(http.ResponseWriter, *http.Request, error)

// Middleware authenticates requests with a bearer token and, optionally,
// requires a scope.
type Middleware struct {
	parser       TokenParser
	extractor    TokenExtractor
	scope        string
	errorHandler ErrorHandler
}

type MiddlewareOption func(*Middleware)

// RequireScope rejects tokens that were not granted scope.
func RequireScope(scope string) MiddlewareOption {
	return func(m *Middleware) {
		m.scope = scope
	}
}

func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(m *Middleware) {
		if extractor != nil {
			m.extractor = extractor
		}
	}
}

func WithErrorHandler(handler ErrorHandler) MiddlewareOption {
	return func(m *Middleware) {
		if handler != nil {
			m.errorHandler = handler
		}
	}
}

type tokenContextKey struct{}

func NewMiddleware(parser TokenParser, opts ...MiddlewareOption) (*Middleware, error) {
	if parser == nil {
		return nil, ErrNilParser
	}
	m := &Middleware{
		parser:       parser,
		extractor:    BearerTokenExtractor,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Authenticate extracts and verifies the request's token.
func (m *Middleware) Authenticate(r *http.Request) (Token, error) {
	raw, err := m.extractor(r)
	if err != nil {
		return Token{}, err
	}
	token, err := m.parser.Parse(r.Context(), raw)
	if err != nil {
		return Token{}, err
	}
	if m.scope != "" && !token.Claims.HasScope(m.scope) {
		return Token{}, ErrMissingScope
	}
	return token, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.Authenticate(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
	})
}

func ContextWithToken(ctx context.Context, token Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func TokenFromContext(ctx context.Context) (Token, bool) {
	if ctx == nil {
		return Token{}, false
	}
	token, ok := ctx.Value(tokenContextKey{}).(Token)
	return token, ok
}

func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrTokenNotFound
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrTokenInvalidInput
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenInvalidInput
	}
	return token, nil
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, ErrMissingScope):
		status = http.StatusForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
