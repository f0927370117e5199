package treatment

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

type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeAdvanced Mode = "advanced"
)

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeSimple, ModeAdvanced:
		return m, nil
	}
	return "", fmt.Errorf("must be one of simple, advanced")
}

type Status string

const (
	StatusPlanned    Status = "planned"
	StatusOnHold     Status = "on_hold"
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var statuses = []Status{StatusPlanned, StatusOnHold, StatusActive, StatusInProgress, StatusCompleted, StatusCancelled}

// ParseStatus lower-cases s and accepts the hyphenated spellings
// ("on-hold", "in-progress") of the underscore statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("must be one of planned, on_hold, active, in_progress, completed, cancelled")
}

const (
	maxNameLen      = 300
	maxTypeLen      = 100
	maxFrequencyLen = 100
	maxOutcomeLen   = 255
	maxLocationLen  = 200
)

type Treatment struct {
	ID             uuid.UUID     `json:"id"`
	PatientID      uuid.UUID     `json:"patient_id"`
	ConditionID    *uuid.UUID    `json:"condition_id"`
	PractitionerID *uuid.UUID    `json:"practitioner_id"`
	TreatmentName  string        `json:"treatment_name"`
	TreatmentType  *string       `json:"treatment_type"`
	Mode           Mode          `json:"mode"`
	Status         Status        `json:"status"`
	StartDate      *caldate.Date `json:"start_date"`
	EndDate        *caldate.Date `json:"end_date"`
	Frequency      *string       `json:"frequency"`
	Outcome        *string       `json:"outcome"`
	Description    *string       `json:"description"`
	Location       *string       `json:"location"`
	Notes          *string       `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Summary is the slice of a treatment nested into link responses.
type Summary struct {
	ID            uuid.UUID     `json:"id"`
	TreatmentName string        `json:"treatment_name"`
	TreatmentType *string       `json:"treatment_type"`
	Mode          Mode          `json:"mode"`
	Status        Status        `json:"status"`
	StartDate     *caldate.Date `json:"start_date"`
	EndDate       *caldate.Date `json:"end_date"`
}

func (t *Treatment) Summary() Summary {
	return Summary{
		ID:            t.ID,
		TreatmentName: t.TreatmentName,
		TreatmentType: t.TreatmentType,
		Mode:          t.Mode,
		Status:        t.Status,
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
	}
}

// validate checks the rules that hold on every stored treatment. The
// status-dependent start date rule is applied separately by the callers
// that are required to run it.
func (t *Treatment) validate(f apperr.Fields) {
	if t.TreatmentName == "" {
		f.Add("treatment_name", "is required")
	} else if utf8.RuneCountInString(t.TreatmentName) > maxNameLen {
		f.Add("treatment_name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	f.MaxLen("treatment_type", t.TreatmentType, maxTypeLen)
	f.MaxLen("frequency", t.Frequency, maxFrequencyLen)
	f.MaxLen("outcome", t.Outcome, maxOutcomeLen)
	f.MaxLen("location", t.Location, maxLocationLen)
	if err := CheckDateOrder(t.StartDate, t.EndDate); err != nil {
		f.Add("end_date", err.Error())
	}
}

type CreateRequest struct {
	TreatmentName  string        `json:"treatment_name"`
	TreatmentType  *string       `json:"treatment_type"`
	Mode           string        `json:"mode"`
	Status         string        `json:"status"`
	StartDate      *caldate.Date `json:"start_date"`
	EndDate        *caldate.Date `json:"end_date"`
	ConditionID    *uuid.UUID    `json:"condition_id"`
	PractitionerID *uuid.UUID    `json:"practitioner_id"`
	Frequency      *string       `json:"frequency"`
	Outcome        *string       `json:"outcome"`
	Description    *string       `json:"description"`
	Location       *string       `json:"location"`
	Notes          *string       `json:"notes"`
}

func (r CreateRequest) build(patientID uuid.UUID, today caldate.Date) (*Treatment, error) {
	t := &Treatment{
		PatientID:      patientID,
		ConditionID:    r.ConditionID,
		PractitionerID: r.PractitionerID,
		TreatmentName:  strings.TrimSpace(r.TreatmentName),
		TreatmentType:  patch.TextPtr(r.TreatmentType),
		Mode:           ModeSimple,
		Status:         StatusPlanned,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Frequency:      patch.TextPtr(r.Frequency),
		Outcome:        patch.TextPtr(r.Outcome),
		Description:    patch.TextPtr(r.Description),
		Location:       patch.TextPtr(r.Location),
		Notes:          patch.TextPtr(r.Notes),
	}

	f := apperr.Fields{}
	if strings.TrimSpace(r.Mode) != "" {
		m, err := ParseMode(r.Mode)
		if err != nil {
			f.Add("mode", err.Error())
		}
		t.Mode = m
	}
	if strings.TrimSpace(r.Status) != "" {
		st, err := ParseStatus(r.Status)
		if err != nil {
			f.Add("status", err.Error())
		}
		t.Status = st
	}
	if t.StartDate != nil && t.Status != "" {
		if err := CheckStartDate(*t.StartDate, t.Status, today); err != nil {
			f.Add("start_date", err.Error())
		}
	}
	t.validate(f)
	if err := f.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

type UpdateRequest struct {
	TreatmentName  patch.Field[string]       `json:"treatment_name"`
	TreatmentType  patch.Field[string]       `json:"treatment_type"`
	Mode           patch.Field[string]       `json:"mode"`
	Status         patch.Field[string]       `json:"status"`
	StartDate      patch.Field[caldate.Date] `json:"start_date"`
	EndDate        patch.Field[caldate.Date] `json:"end_date"`
	ConditionID    patch.Field[uuid.UUID]    `json:"condition_id"`
	PractitionerID patch.Field[uuid.UUID]    `json:"practitioner_id"`
	Frequency      patch.Field[string]       `json:"frequency"`
	Outcome        patch.Field[string]       `json:"outcome"`
	Description    patch.Field[string]       `json:"description"`
	Location       patch.Field[string]       `json:"location"`
	Notes          patch.Field[string]       `json:"notes"`
}

// apply merges r into t. The status-dependent start date rule runs only
// when the patch carries both start_date and status; a patch that moves
// only the date is not checked against the stored status.
func (r UpdateRequest) apply(t *Treatment, today caldate.Date) error {
	f := apperr.Fields{}
	if r.TreatmentName.Set {
		name := patch.Text(r.TreatmentName)
		if name.Present() {
			t.TreatmentName = name.Value
		} else {
			t.TreatmentName = ""
		}
	}
	if r.Mode.Set {
		if r.Mode.Null {
			f.Add("mode", "cannot be null")
		} else if m, err := ParseMode(r.Mode.Value); err != nil {
			f.Add("mode", err.Error())
		} else {
			t.Mode = m
		}
	}
	if r.Status.Set {
		if r.Status.Null {
			f.Add("status", "cannot be null")
		} else if st, err := ParseStatus(r.Status.Value); err != nil {
			f.Add("status", err.Error())
		} else {
			t.Status = st
		}
	}

	patch.Text(r.TreatmentType).Apply(&t.TreatmentType)
	r.StartDate.Apply(&t.StartDate)
	r.EndDate.Apply(&t.EndDate)
	r.ConditionID.Apply(&t.ConditionID)
	r.PractitionerID.Apply(&t.PractitionerID)
	patch.Text(r.Frequency).Apply(&t.Frequency)
	patch.Text(r.Outcome).Apply(&t.Outcome)
	patch.Text(r.Description).Apply(&t.Description)
	patch.Text(r.Location).Apply(&t.Location)
	patch.Text(r.Notes).Apply(&t.Notes)

	if r.StartDate.Present() && r.Status.Present() {
		if _, statusBad := f["status"]; !statusBad {
			if err := CheckStartDate(*t.StartDate, t.Status, today); err != nil {
				f.Add("start_date", err.Error())
			}
		}
	}
	t.validate(f)
	return f.Err()
}

type ListFilter struct {
	pagination.Params
	Status      Status
	ConditionID *uuid.UUID
}
