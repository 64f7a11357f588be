package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorMapper returns the status for err, or false to fall through to 500.
type ErrorMapper func(err error) (int, bool)

// NewErrorHandler renders every handler error as {"error": "..."}. Echo HTTP
// errors keep their code; other errors go through mapper. Mapped codes
// below 500 carry err's message. Server-side failures, mapped or not, are
// logged and answered with the bare status text.
func NewErrorHandler(logger *zap.Logger, mapper ErrorMapper) func(error, Context) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c Context) {
		if c.Response().Committed {
			return
		}
		code, msg := StatusInternalError, http.StatusText(StatusInternalError)

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = httpErrorMessage(he)
		case mapper != nil:
			if mapped, ok := mapper(err); ok {
				code, msg = mapped, err.Error()
				if code >= StatusInternalError {
					msg = http.StatusText(code)
				}
			}
		}
		if code >= StatusInternalError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
