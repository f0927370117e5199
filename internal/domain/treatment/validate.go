package treatment

import (
	"errors"
	"fmt"

	"github.com/ehr/phr/pkg/caldate"
)

// FutureHorizonDays is how far past today a planned or on-hold treatment
// may start.
const FutureHorizonDays = 3650

// AllowsFutureStart reports whether a treatment in status s may start after
// today.
func (s Status) AllowsFutureStart() bool {
	return s == StatusPlanned || s == StatusOnHold
}

// CheckStartDate applies the status-dependent start date rule: planned and
// on-hold treatments may start up to FutureHorizonDays ahead, every other
// status must have started by today. Past dates are always accepted.
func CheckStartDate(start caldate.Date, status Status, today caldate.Date) error {
	if status.AllowsFutureStart() {
		if limit := today.AddDays(FutureHorizonDays); start.After(limit) {
			return fmt.Errorf("must not be more than %d days in the future for status %s", FutureHorizonDays, status)
		}
		return nil
	}
	if start.After(today) {
		return fmt.Errorf("must not be in the future for status %s", status)
	}
	return nil
}

var errEndBeforeStart = errors.New("must not be before start_date")

// CheckDateOrder rejects an end date before the start date. A missing side
// is never an error.
func CheckDateOrder(start, end *caldate.Date) error {
	if start != nil && end != nil && end.Before(*start) {
		return errEndBeforeStart
	}
	return nil
}
