package treatment

import (
	"github.com/google/uuid"

	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/pkg/caldate"
)

// Effective holds the values in force for a treatment-medication link once
// its overrides are laid over the medication's own values.
type Effective struct {
	Dosage       *string       `json:"effective_dosage"`
	Frequency    *string       `json:"effective_frequency"`
	PrescriberID *uuid.UUID    `json:"effective_prescriber_id"`
	PharmacyID   *uuid.UUID    `json:"effective_pharmacy_id"`
	StartDate    *caldate.Date `json:"effective_start_date"`
	EndDate      *caldate.Date `json:"effective_end_date"`
}

// Resolve computes the effective values of l against m. Each override wins
// when present; otherwise the medication's value is used.
//
// The end date is asymmetric: an inherited end date that falls before the
// effective start is dropped rather than reported. An overridden end date is
// always kept, since the link's own dates are checked when written.
func Resolve(l *MedicationLink, m *medication.Medication) Effective {
	e := Effective{
		Dosage:       firstNonNil(l.SpecificDosage, m.Dosage),
		Frequency:    firstNonNil(l.SpecificFrequency, m.Frequency),
		PrescriberID: firstNonNil(l.SpecificPrescriberID, m.PractitionerID),
		PharmacyID:   firstNonNil(l.SpecificPharmacyID, m.PharmacyID),
		StartDate:    firstNonNil(l.SpecificStartDate, m.EffectivePeriodStart),
	}
	switch {
	case l.SpecificEndDate != nil:
		e.EndDate = l.SpecificEndDate
	case m.EffectivePeriodEnd != nil && e.StartDate != nil && m.EffectivePeriodEnd.Before(*e.StartDate):
		e.EndDate = nil
	default:
		e.EndDate = m.EffectivePeriodEnd
	}
	return e
}

func firstNonNil[T any](override, base *T) *T {
	if override != nil {
		return override
	}
	return base
}
