package condition

import (
	"fmt"
	"regexp"
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
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusResolved   Status = "resolved"
	StatusChronic    Status = "chronic"
	StatusRecurrence Status = "recurrence"
	StatusRelapse    Status = "relapse"
	StatusRemission  Status = "remission"
)

var statuses = []Status{StatusActive, StatusInactive, StatusResolved, StatusChronic,
	StatusRecurrence, StatusRelapse, StatusRemission}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("must be one of %s", joinStatuses(statuses))
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	sv := Severity(strings.ToLower(strings.TrimSpace(s)))
	switch sv {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityCritical:
		return sv, nil
	}
	return "", fmt.Errorf("must be one of mild, moderate, severe, critical")
}

func joinStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

var (
	icd10Pattern  = regexp.MustCompile(`^[A-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)
	snomedPattern = regexp.MustCompile(`^[0-9]{6,18}$`)
)

const maxDiagnosisLen = 500

type Condition struct {
	ID             uuid.UUID     `json:"id"`
	PatientID      uuid.UUID     `json:"patient_id"`
	Diagnosis      string        `json:"diagnosis"`
	Status         Status        `json:"status"`
	Severity       *Severity     `json:"severity"`
	OnsetDate      *caldate.Date `json:"onset_date"`
	EndDate        *caldate.Date `json:"end_date"`
	ICD10Code      *string       `json:"icd10_code"`
	SNOMEDCode     *string       `json:"snomed_code"`
	PractitionerID *uuid.UUID    `json:"practitioner_id"`
	Notes          *string       `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Summary is the slice of a condition nested into link responses.
type Summary struct {
	ID        uuid.UUID     `json:"id"`
	Diagnosis string        `json:"diagnosis"`
	Status    Status        `json:"status"`
	Severity  *Severity     `json:"severity"`
	OnsetDate *caldate.Date `json:"onset_date"`
}

func (c *Condition) Summary() Summary {
	return Summary{ID: c.ID, Diagnosis: c.Diagnosis, Status: c.Status, Severity: c.Severity, OnsetDate: c.OnsetDate}
}

// Validate checks the field rules on a complete record against today's date.
func (c *Condition) Validate(today caldate.Date) error {
	f := apperr.Fields{}
	if c.Diagnosis == "" {
		f.Add("diagnosis", "is required")
	} else if utf8.RuneCountInString(c.Diagnosis) > maxDiagnosisLen {
		f.Add("diagnosis", fmt.Sprintf("must be at most %d characters", maxDiagnosisLen))
	}
	if c.OnsetDate != nil && c.OnsetDate.After(today) {
		f.Add("onset_date", "must not be in the future")
	}
	if c.EndDate != nil && c.EndDate.After(today) {
		f.Add("end_date", "must not be in the future")
	}
	if c.OnsetDate != nil && c.EndDate != nil && c.EndDate.Before(*c.OnsetDate) {
		f.Add("end_date", "must not be before onset_date")
	}
	if c.ICD10Code != nil && !icd10Pattern.MatchString(*c.ICD10Code) {
		f.Add("icd10_code", "must look like A00 or A00.0000")
	}
	if c.SNOMEDCode != nil && !snomedPattern.MatchString(*c.SNOMEDCode) {
		f.Add("snomed_code", "must be 6 to 18 digits")
	}
	return f.Err()
}

func upper(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(*s)
	return &v
}

type CreateRequest struct {
	Diagnosis      string        `json:"diagnosis"`
	Status         string        `json:"status"`
	Severity       *string       `json:"severity"`
	OnsetDate      *caldate.Date `json:"onset_date"`
	EndDate        *caldate.Date `json:"end_date"`
	ICD10Code      *string       `json:"icd10_code"`
	SNOMEDCode     *string       `json:"snomed_code"`
	PractitionerID *uuid.UUID    `json:"practitioner_id"`
	Notes          *string       `json:"notes"`
}

func (r CreateRequest) build(patientID uuid.UUID, today caldate.Date) (*Condition, error) {
	c := &Condition{
		PatientID:      patientID,
		Diagnosis:      strings.TrimSpace(r.Diagnosis),
		Status:         StatusActive,
		OnsetDate:      r.OnsetDate,
		EndDate:        r.EndDate,
		ICD10Code:      upper(patch.TextPtr(r.ICD10Code)),
		SNOMEDCode:     patch.TextPtr(r.SNOMEDCode),
		PractitionerID: r.PractitionerID,
		Notes:          patch.TextPtr(r.Notes),
	}
	if strings.TrimSpace(r.Status) != "" {
		st, err := ParseStatus(r.Status)
		if err != nil {
			return nil, apperr.Invalid("status", err.Error())
		}
		c.Status = st
	}
	if sv := patch.TextPtr(r.Severity); sv != nil {
		parsed, err := ParseSeverity(*sv)
		if err != nil {
			return nil, apperr.Invalid("severity", err.Error())
		}
		c.Severity = &parsed
	}
	if err := c.Validate(today); err != nil {
		return nil, err
	}
	return c, nil
}

type UpdateRequest struct {
	Diagnosis      patch.Field[string]       `json:"diagnosis"`
	Status         patch.Field[string]       `json:"status"`
	Severity       patch.Field[string]       `json:"severity"`
	OnsetDate      patch.Field[caldate.Date] `json:"onset_date"`
	EndDate        patch.Field[caldate.Date] `json:"end_date"`
	ICD10Code      patch.Field[string]       `json:"icd10_code"`
	SNOMEDCode     patch.Field[string]       `json:"snomed_code"`
	PractitionerID patch.Field[uuid.UUID]    `json:"practitioner_id"`
	Notes          patch.Field[string]       `json:"notes"`
}

func (r UpdateRequest) apply(c *Condition, today caldate.Date) error {
	if r.Diagnosis.Set {
		d := patch.Text(r.Diagnosis)
		if !d.Present() {
			return apperr.Invalid("diagnosis", "is required")
		}
		c.Diagnosis = d.Value
	}
	if r.Status.Set {
		if r.Status.Null {
			return apperr.Invalid("status", "cannot be null")
		}
		st, err := ParseStatus(r.Status.Value)
		if err != nil {
			return apperr.Invalid("status", err.Error())
		}
		c.Status = st
	}
	if sv := patch.Text(r.Severity); sv.Set {
		if sv.Null {
			c.Severity = nil
		} else {
			parsed, err := ParseSeverity(sv.Value)
			if err != nil {
				return apperr.Invalid("severity", err.Error())
			}
			c.Severity = &parsed
		}
	}
	r.OnsetDate.Apply(&c.OnsetDate)
	r.EndDate.Apply(&c.EndDate)
	patch.Text(r.ICD10Code).Apply(&c.ICD10Code)
	c.ICD10Code = upper(c.ICD10Code)
	patch.Text(r.SNOMEDCode).Apply(&c.SNOMEDCode)
	r.PractitionerID.Apply(&c.PractitionerID)
	patch.Text(r.Notes).Apply(&c.Notes)
	return c.Validate(today)
}

type ListFilter struct {
	pagination.Params
	Status Status
}
