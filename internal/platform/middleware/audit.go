package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/platform/auth"
)

// AccessEntry describes one access to patient-scoped data.
type AccessEntry struct {
	UserID    string
	PatientID string
	Action    string
	Route     string
	Method    string
	Status    int
	RequestID string
	IPAddress string
	Timestamp time.Time
}

// AccessRecorder persists access entries.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

// AccessRecorderFunc adapts a function to AccessRecorder.
type AccessRecorderFunc func(entry AccessEntry) error

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) error {
	return f(entry)
}

// AccessLog records who touched which patient's records. The active patient
// is read after the handler chain ran, so requests that never got one
// (failed auth, unknown routes) are not recorded. Every entry is also
// written to logger.
func AccessLog(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			ctx := c.Request().Context()
			patientID, ok := auth.PatientIDFromContext(ctx)
			if !ok {
				return err
			}

			status := responseStatus(c, err)
			entry := AccessEntry{
				UserID:    auth.UserIDFromContext(ctx),
				PatientID: patientID.String(),
				Action:    actionFor(c.Request().Method),
				Route:     c.Path(),
				Method:    c.Request().Method,
				Status:    status,
				RequestID: RequestIDFrom(c),
				IPAddress: c.RealIP(),
				Timestamp: time.Now().UTC(),
			}

			logger.Info().
				Str("user_id", entry.UserID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Int("status", entry.Status).
				Str("request_id", entry.RequestID).
				Msg("phi access")

			for _, r := range recorders {
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("record access entry")
				}
			}
			return err
		}
	}
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}
