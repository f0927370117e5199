package middleware

import (
	"fmt"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/platform/apperr"
)

const maxStackBytes = 4096

// Recovery turns a panic into a 500. It logs through the request logger when
// one is on the context, which already carries the request id and, once the
// patient scope ran, the patient id; logger is the fallback.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				l := zerolog.Ctx(c.Request().Context())
				if l.GetLevel() == zerolog.Disabled {
					fallback := logger.With().Str("request_id", RequestIDFrom(c)).Logger()
					l = &fallback
				}
				l.Error().
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = apperr.Internal(fmt.Errorf("panic in %s %s: %v", c.Request().Method, c.Path(), r))
			}()
			return next(c)
		}
	}
}
