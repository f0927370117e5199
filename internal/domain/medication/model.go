package medication

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/pkg/caldate"
	"github.com/ehr/phr/pkg/pagination"
	"github.com/ehr/phr/pkg/patch"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusStopped   Status = "stopped"
	StatusOnHold    Status = "on-hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statuses = []Status{StatusActive, StatusStopped, StatusOnHold, StatusCompleted, StatusCancelled}

// ParseStatus lower-cases s and checks it against the known statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("must be one of active, stopped, on-hold, completed, cancelled")
}

const (
	maxNameLen      = 255
	maxDosageLen    = 100
	maxFrequencyLen = 100
	maxRouteLen     = 50
)

type Medication struct {
	ID                   uuid.UUID     `json:"id"`
	PatientID            uuid.UUID     `json:"patient_id"`
	MedicationName       string        `json:"medication_name"`
	Dosage               *string       `json:"dosage"`
	Frequency            *string       `json:"frequency"`
	Route                *string       `json:"route"`
	Indication           *string       `json:"indication"`
	Status               Status        `json:"status"`
	EffectivePeriodStart *caldate.Date `json:"effective_period_start"`
	EffectivePeriodEnd   *caldate.Date `json:"effective_period_end"`
	PractitionerID       *uuid.UUID    `json:"practitioner_id"`
	PharmacyID           *uuid.UUID    `json:"pharmacy_id"`
	Notes                *string       `json:"notes"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Summary is the slice of a medication nested into link responses.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	MedicationName string    `json:"medication_name"`
	Dosage         *string   `json:"dosage"`
	Frequency      *string   `json:"frequency"`
	Status         Status    `json:"status"`
}

func (m *Medication) Summary() Summary {
	return Summary{
		ID:             m.ID,
		MedicationName: m.MedicationName,
		Dosage:         m.Dosage,
		Frequency:      m.Frequency,
		Status:         m.Status,
	}
}

// Validate checks the field rules on a complete record.
func (m *Medication) Validate() error {
	f := apperr.Fields{}
	if m.MedicationName == "" {
		f.Add("medication_name", "is required")
	} else if utf8.RuneCountInString(m.MedicationName) > maxNameLen {
		f.Add("medication_name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	f.MaxLen("dosage", m.Dosage, maxDosageLen)
	f.MaxLen("frequency", m.Frequency, maxFrequencyLen)
	f.MaxLen("route", m.Route, maxRouteLen)
	if m.EffectivePeriodStart != nil && m.EffectivePeriodEnd != nil &&
		m.EffectivePeriodEnd.Before(*m.EffectivePeriodStart) {
		f.Add("effective_period_end", "must not be before effective_period_start")
	}
	return f.Err()
}

type CreateRequest struct {
	MedicationName       string        `json:"medication_name"`
	Dosage               *string       `json:"dosage"`
	Frequency            *string       `json:"frequency"`
	Route                *string       `json:"route"`
	Indication           *string       `json:"indication"`
	Status               string        `json:"status"`
	EffectivePeriodStart *caldate.Date `json:"effective_period_start"`
	EffectivePeriodEnd   *caldate.Date `json:"effective_period_end"`
	PractitionerID       *uuid.UUID    `json:"practitioner_id"`
	PharmacyID           *uuid.UUID    `json:"pharmacy_id"`
	Notes                *string       `json:"notes"`
}

// build turns a create request into a validated record owned by patientID.
func (r CreateRequest) build(patientID uuid.UUID) (*Medication, error) {
	m := &Medication{
		PatientID:            patientID,
		MedicationName:       strings.TrimSpace(r.MedicationName),
		Dosage:               patch.TextPtr(r.Dosage),
		Frequency:            patch.TextPtr(r.Frequency),
		Route:                patch.TextPtr(r.Route),
		Indication:           patch.TextPtr(r.Indication),
		Status:               StatusActive,
		EffectivePeriodStart: r.EffectivePeriodStart,
		EffectivePeriodEnd:   r.EffectivePeriodEnd,
		PractitionerID:       r.PractitionerID,
		PharmacyID:           r.PharmacyID,
		Notes:                patch.TextPtr(r.Notes),
	}
	if strings.TrimSpace(r.Status) != "" {
		st, err := ParseStatus(r.Status)
		if err != nil {
			return nil, apperr.Invalid("status", err.Error())
		}
		m.Status = st
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateRequest is a merge-patch: omitted members keep their value, null
// clears, and a blank string clears free-text members.
type UpdateRequest struct {
	MedicationName       patch.Field[string]       `json:"medication_name"`
	Dosage               patch.Field[string]       `json:"dosage"`
	Frequency            patch.Field[string]       `json:"frequency"`
	Route                patch.Field[string]       `json:"route"`
	Indication           patch.Field[string]       `json:"indication"`
	Status               patch.Field[string]       `json:"status"`
	EffectivePeriodStart patch.Field[caldate.Date] `json:"effective_period_start"`
	EffectivePeriodEnd   patch.Field[caldate.Date] `json:"effective_period_end"`
	PractitionerID       patch.Field[uuid.UUID]    `json:"practitioner_id"`
	PharmacyID           patch.Field[uuid.UUID]    `json:"pharmacy_id"`
	Notes                patch.Field[string]       `json:"notes"`
}

// apply merges r into m and re-validates the result.
func (r UpdateRequest) apply(m *Medication) error {
	if r.MedicationName.Set {
		name := patch.Text(r.MedicationName)
		if !name.Present() {
			return apperr.Invalid("medication_name", "is required")
		}
		m.MedicationName = name.Value
	}
	if r.Status.Set {
		if r.Status.Null {
			return apperr.Invalid("status", "cannot be null")
		}
		st, err := ParseStatus(r.Status.Value)
		if err != nil {
			return apperr.Invalid("status", err.Error())
		}
		m.Status = st
	}
	patch.Text(r.Dosage).Apply(&m.Dosage)
	patch.Text(r.Frequency).Apply(&m.Frequency)
	patch.Text(r.Route).Apply(&m.Route)
	patch.Text(r.Indication).Apply(&m.Indication)
	patch.Text(r.Notes).Apply(&m.Notes)
	r.EffectivePeriodStart.Apply(&m.EffectivePeriodStart)
	r.EffectivePeriodEnd.Apply(&m.EffectivePeriodEnd)
	r.PractitionerID.Apply(&m.PractitionerID)
	r.PharmacyID.Apply(&m.PharmacyID)
	return m.Validate()
}

type ListFilter struct {
	pagination.Params
	Status Status
}
