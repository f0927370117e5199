package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/phr/internal/platform/apperr"
)

// SQLSTATE codes the repositories care about.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	stringTooLong       = "22001"
)

// checkFields names the request field behind each CHECK constraint in the
// schema, so a violation is reported the same way the service validators
// would have reported it.
var checkFields = map[string]string{
	"ck_medication_period":          "effective_period_end",
	"ck_condition_dates":            "end_date",
	"ck_treatment_dates":            "end_date",
	"ck_treatment_medication_dates": "specific_end_date",
}

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func pgCode(err error) string {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == foreignKeyViolation
}

// Classify maps driver errors onto the apperr sentinels so services can use
// errors.Is without knowing about pgx. Constraint and driver text stays in
// the wrapped chain for logs; the client-facing message is fixed.
func Classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case pgCode(err) == checkViolation:
		if field, ok := checkFields[pgError(err).ConstraintName]; ok {
			return fmt.Errorf("%s: %w", op, apperr.Invalid(field, "is not consistent with the other dates"))
		}
		return fmt.Errorf("%s: %w", op, apperr.Validation("record violates a data rule", nil))
	case pgCode(err) == stringTooLong:
		return fmt.Errorf("%s: %w", op, apperr.Validation("a text value is too long", nil))
	}
	return fmt.Errorf("%s: %w", op, err)
}
