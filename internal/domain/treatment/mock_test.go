package treatment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/domain/condition"
	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Treatment
	clock time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]*Treatment),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *mockRepo) Create(_ context.Context, t *Treatment) error {
	t.ID = uuid.New()
	t.CreatedAt = r.tick()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *mockRepo) Get(_ context.Context, patientID, id uuid.UUID) (*Treatment, error) {
	t, ok := r.items[id]
	if !ok || t.PatientID != patientID {
		return nil, fmt.Errorf("get treatment: %w", apperr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *mockRepo) List(_ context.Context, patientID uuid.UUID, f ListFilter) ([]*Treatment, int, error) {
	var out []*Treatment
	for _, t := range r.items {
		if t.PatientID != patientID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.TreatmentName), strings.ToLower(f.Search)) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.ConditionID != nil && (t.ConditionID == nil || *t.ConditionID != *f.ConditionID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return out[f.Offset:end], total, nil
}

func (r *mockRepo) Update(_ context.Context, t *Treatment) error {
	existing, ok := r.items[t.ID]
	if !ok || existing.PatientID != t.PatientID {
		return fmt.Errorf("update treatment: %w", apperr.ErrNotFound)
	}
	t.UpdatedAt = r.tick()
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, patientID, id uuid.UUID) error {
	t, ok := r.items[id]
	if !ok || t.PatientID != patientID {
		return fmt.Errorf("delete treatment: %w", apperr.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

type mockMeds struct {
	items map[uuid.UUID]*medication.Medication
}

func newMockMeds() *mockMeds {
	return &mockMeds{items: make(map[uuid.UUID]*medication.Medication)}
}

func (m *mockMeds) put(med *medication.Medication) *medication.Medication {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	if med.Status == "" {
		med.Status = medication.StatusActive
	}
	m.items[med.ID] = med
	return med
}

func (m *mockMeds) GetMedication(_ context.Context, patientID, id uuid.UUID) (*medication.Medication, error) {
	med, ok := m.items[id]
	if !ok || med.PatientID != patientID {
		return nil, apperr.NotFound("medication")
	}
	cp := *med
	return &cp, nil
}

type mockConditions struct {
	items map[uuid.UUID]*condition.Condition
}

func (m *mockConditions) add(patientID uuid.UUID) *condition.Condition {
	c := &condition.Condition{ID: uuid.New(), PatientID: patientID, Diagnosis: "Hypertension", Status: condition.StatusActive}
	m.items[c.ID] = c
	return c
}

func (m *mockConditions) GetCondition(_ context.Context, patientID, id uuid.UUID) (*condition.Condition, error) {
	c, ok := m.items[id]
	if !ok || c.PatientID != patientID {
		return nil, apperr.NotFound("condition")
	}
	return c, nil
}

type mockLinkRepo struct {
	links      map[uuid.UUID]*MedicationLink
	treatments *mockRepo
	meds       *mockMeds
	locks      int
	clock      time.Time
}

func newMockLinkRepo(treatments *mockRepo, meds *mockMeds) *mockLinkRepo {
	return &mockLinkRepo{
		links:      make(map[uuid.UUID]*MedicationLink),
		treatments: treatments,
		meds:       meds,
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockLinkRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *mockLinkRepo) Lock(_ context.Context, treatmentID uuid.UUID) error {
	if _, ok := r.treatments.items[treatmentID]; !ok {
		return fmt.Errorf("lock treatment: %w", apperr.ErrNotFound)
	}
	r.locks++
	return nil
}

func (r *mockLinkRepo) Exists(_ context.Context, treatmentID, medicationID uuid.UUID) (bool, error) {
	for _, l := range r.links {
		if l.TreatmentID == treatmentID && l.MedicationID == medicationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockLinkRepo) Insert(_ context.Context, l *MedicationLink) error {
	l.ID = uuid.New()
	l.CreatedAt = r.tick()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	r.links[l.ID] = &cp
	return nil
}

func (r *mockLinkRepo) Get(_ context.Context, treatmentID, linkID uuid.UUID) (*MedicationLink, error) {
	l, ok := r.links[linkID]
	if !ok || l.TreatmentID != treatmentID {
		return nil, fmt.Errorf("get treatment medication: %w", apperr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (r *mockLinkRepo) sorted(keep func(*MedicationLink) bool) []*MedicationLink {
	var out []*MedicationLink
	for _, l := range r.links {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *mockLinkRepo) ListByTreatment(_ context.Context, treatmentID uuid.UUID) ([]LinkedMedication, error) {
	var out []LinkedMedication
	for _, l := range r.sorted(func(l *MedicationLink) bool { return l.TreatmentID == treatmentID }) {
		m := *r.meds.items[l.MedicationID]
		out = append(out, LinkedMedication{Link: l, Medication: &m})
	}
	return out, nil
}

func (r *mockLinkRepo) ListByMedication(_ context.Context, medicationID uuid.UUID) ([]LinkedTreatment, error) {
	var out []LinkedTreatment
	for _, l := range r.sorted(func(l *MedicationLink) bool { return l.MedicationID == medicationID }) {
		t := *r.treatments.items[l.TreatmentID]
		out = append(out, LinkedTreatment{Link: l, Treatment: &t})
	}
	return out, nil
}

func (r *mockLinkRepo) Update(_ context.Context, l *MedicationLink) error {
	existing, ok := r.links[l.ID]
	if !ok || existing.TreatmentID != l.TreatmentID {
		return fmt.Errorf("update treatment medication: %w", apperr.ErrNotFound)
	}
	l.UpdatedAt = r.tick()
	cp := *l
	r.links[l.ID] = &cp
	return nil
}

func (r *mockLinkRepo) Delete(_ context.Context, treatmentID, linkID uuid.UUID) error {
	l, ok := r.links[linkID]
	if !ok || l.TreatmentID != treatmentID {
		return fmt.Errorf("delete treatment medication: %w", apperr.ErrNotFound)
	}
	delete(r.links, linkID)
	return nil
}
