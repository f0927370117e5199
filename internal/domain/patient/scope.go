package patient

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/auth"
)

// PatientHeader selects one of the caller's patients.
const PatientHeader = "X-Patient-ID"

// Scope resolves the caller's active patient and stores it on the request
// context for the handlers below it.
func Scope(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				return apperr.Unauthorized("authentication required")
			}
			p, err := svc.Resolve(ctx, userID, c.Request().Header.Get(PatientHeader))
			if err != nil {
				return err
			}

			zerolog.Ctx(ctx).UpdateContext(func(zc zerolog.Context) zerolog.Context {
				return zc.Stringer("patient_id", p.ID)
			})
			c.SetRequest(c.Request().WithContext(auth.WithPatientID(ctx, p.ID)))
			return next(c)
		}
	}
}
