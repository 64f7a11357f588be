package httpx

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/auth"
)

// HeaderRequestID carries the request id between services.
const HeaderRequestID = echo.HeaderXRequestID

type requestIDKey struct{}

// ContextWithRequestID returns ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by RequestIDMiddleware,
// or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware honours an incoming X-Request-ID or assigns a UUID,
// and stores it in the request context for outgoing calls.
func RequestIDMiddleware() MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(ContextWithRequestID(req.Context(), id)))
		},
	})
}

// RequestLoggerMiddleware writes one zap entry per request.
func RequestLoggerMiddleware(logger *zap.Logger) MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

// AuthMiddleware authenticates the request with mw and stores the token in
// the request context. A nil mw rejects every request.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if mw == nil {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
			token, err := mw.Authenticate(c.Request())
			if err != nil {
				if errors.Is(err, auth.ErrMissingScope) {
					return HTTPError(StatusForbidden, err.Error())
				}
				return HTTPError(StatusUnauthorized, err.Error())
			}
			req := c.Request()
			c.SetRequest(req.WithContext(auth.ContextWithToken(req.Context(), token)))
			return next(c)
		}
	}
}
