package treatment

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/pkg/caldate"
	"github.com/ehr/phr/pkg/patch"
)

const (
	maxRelevanceNoteLen = 500
	maxOverrideTextLen  = 100
)

// MedicationLink ties a medication to a treatment. Each specific_* field,
// when set, overrides the medication's own value for this treatment only.
type MedicationLink struct {
	ID                   uuid.UUID     `json:"id"`
	TreatmentID          uuid.UUID     `json:"treatment_id"`
	MedicationID         uuid.UUID     `json:"medication_id"`
	SpecificDosage       *string       `json:"specific_dosage"`
	SpecificFrequency    *string       `json:"specific_frequency"`
	SpecificPrescriberID *uuid.UUID    `json:"specific_prescriber_id"`
	SpecificPharmacyID   *uuid.UUID    `json:"specific_pharmacy_id"`
	SpecificStartDate    *caldate.Date `json:"specific_start_date"`
	SpecificEndDate      *caldate.Date `json:"specific_end_date"`
	RelevanceNote        *string       `json:"relevance_note"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func (l *MedicationLink) validate() error {
	f := apperr.Fields{}
	if l.SpecificStartDate != nil && l.SpecificEndDate != nil && l.SpecificEndDate.Before(*l.SpecificStartDate) {
		f.Add("specific_end_date", "must not be before specific_start_date")
	}
	f.MaxLen("specific_dosage", l.SpecificDosage, maxOverrideTextLen)
	f.MaxLen("specific_frequency", l.SpecificFrequency, maxOverrideTextLen)
	f.MaxLen("relevance_note", l.RelevanceNote, maxRelevanceNoteLen)
	return f.Err()
}

// LinkView is a link as returned by the API: the stored overrides, the
// resolved effective values, and a snapshot of the other endpoint.
type LinkView struct {
	MedicationLink
	Effective
	Medication *medication.Medication `json:"medication,omitempty"`
	Treatment  *Summary               `json:"treatment,omitempty"`
}

// LinkedMedication is a stored link with the medication it points at.
type LinkedMedication struct {
	Link       *MedicationLink
	Medication *medication.Medication
}

// LinkedTreatment is a stored link with the treatment it belongs to.
type LinkedTreatment struct {
	Link      *MedicationLink
	Treatment *Treatment
}

func medicationView(l *MedicationLink, m *medication.Medication) *LinkView {
	return &LinkView{MedicationLink: *l, Effective: Resolve(l, m), Medication: m}
}

func treatmentView(l *MedicationLink, t *Treatment, m *medication.Medication) *LinkView {
	s := t.Summary()
	return &LinkView{MedicationLink: *l, Effective: Resolve(l, m), Treatment: &s}
}

type CreateLinkRequest struct {
	MedicationID         uuid.UUID     `json:"medication_id"`
	SpecificDosage       *string       `json:"specific_dosage"`
	SpecificFrequency    *string       `json:"specific_frequency"`
	SpecificPrescriberID *uuid.UUID    `json:"specific_prescriber_id"`
	SpecificPharmacyID   *uuid.UUID    `json:"specific_pharmacy_id"`
	SpecificStartDate    *caldate.Date `json:"specific_start_date"`
	SpecificEndDate      *caldate.Date `json:"specific_end_date"`
	RelevanceNote        *string       `json:"relevance_note"`
}

func (r CreateLinkRequest) build(treatmentID uuid.UUID) (*MedicationLink, error) {
	l := &MedicationLink{
		TreatmentID:          treatmentID,
		MedicationID:         r.MedicationID,
		SpecificDosage:       patch.TextPtr(r.SpecificDosage),
		SpecificFrequency:    patch.TextPtr(r.SpecificFrequency),
		SpecificPrescriberID: r.SpecificPrescriberID,
		SpecificPharmacyID:   r.SpecificPharmacyID,
		SpecificStartDate:    r.SpecificStartDate,
		SpecificEndDate:      r.SpecificEndDate,
		RelevanceNote:        patch.TextPtr(r.RelevanceNote),
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLinkRequest is a merge patch over a link's overrides.
type UpdateLinkRequest struct {
	SpecificDosage       patch.Field[string]       `json:"specific_dosage"`
	SpecificFrequency    patch.Field[string]       `json:"specific_frequency"`
	SpecificPrescriberID patch.Field[uuid.UUID]    `json:"specific_prescriber_id"`
	SpecificPharmacyID   patch.Field[uuid.UUID]    `json:"specific_pharmacy_id"`
	SpecificStartDate    patch.Field[caldate.Date] `json:"specific_start_date"`
	SpecificEndDate      patch.Field[caldate.Date] `json:"specific_end_date"`
	RelevanceNote        patch.Field[string]       `json:"relevance_note"`
}

func (r UpdateLinkRequest) apply(l *MedicationLink) error {
	patch.Text(r.SpecificDosage).Apply(&l.SpecificDosage)
	patch.Text(r.SpecificFrequency).Apply(&l.SpecificFrequency)
	r.SpecificPrescriberID.Apply(&l.SpecificPrescriberID)
	r.SpecificPharmacyID.Apply(&l.SpecificPharmacyID)
	r.SpecificStartDate.Apply(&l.SpecificStartDate)
	r.SpecificEndDate.Apply(&l.SpecificEndDate)
	patch.Text(r.RelevanceNote).Apply(&l.RelevanceNote)
	return l.validate()
}

type BulkLinkRequest struct {
	MedicationIDs []uuid.UUID `json:"medication_ids"`
	RelevanceNote *string     `json:"relevance_note"`
}

type BulkResult struct {
	Created              []*LinkView `json:"created"`
	SkippedMedicationIDs []uuid.UUID `json:"skipped_medication_ids"`
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
