package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	PatientIDKey contextKey = "patient_id"
)

// WithUser attaches the authenticated subject and roles to ctx.
func WithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// WithPatientID records the caller's active patient. Every patient-owned
// record is read and written through this scope.
func WithPatientID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, PatientIDKey, id)
}

// PatientIDFromContext returns the active patient, or false when the request
// has not been scoped.
func PatientIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(PatientIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ScopedPatient is PatientIDFromContext for handlers: an unscoped request
// gets the same 404 as a request for another user's patient.
func ScopedPatient(ctx context.Context) (uuid.UUID, error) {
	id, ok := PatientIDFromContext(ctx)
	if !ok {
		return uuid.Nil, apperr.NotFound("patient")
	}
	return id, nil
}
