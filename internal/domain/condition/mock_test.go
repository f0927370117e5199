package condition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Condition
	clock time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]*Condition),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *mockRepo) Create(_ context.Context, c *Condition) error {
	c.ID = uuid.New()
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *mockRepo) Get(_ context.Context, patientID, id uuid.UUID) (*Condition, error) {
	c, ok := r.items[id]
	if !ok || c.PatientID != patientID {
		return nil, fmt.Errorf("get condition: %w", apperr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *mockRepo) List(_ context.Context, patientID uuid.UUID, f ListFilter) ([]*Condition, int, error) {
	var out []*Condition
	for _, c := range r.items {
		if c.PatientID != patientID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Diagnosis), strings.ToLower(f.Search)) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		cp := *c
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

func (r *mockRepo) Update(_ context.Context, c *Condition) error {
	existing, ok := r.items[c.ID]
	if !ok || existing.PatientID != c.PatientID {
		return fmt.Errorf("update condition: %w", apperr.ErrNotFound)
	}
	c.UpdatedAt = r.tick()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, patientID, id uuid.UUID) error {
	c, ok := r.items[id]
	if !ok || c.PatientID != patientID {
		return fmt.Errorf("delete condition: %w", apperr.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

// mockMeds is a MedicationLookup over a fixed set of medications.
type mockMeds struct {
	items map[uuid.UUID]*medication.Medication
}

func newMockMeds() *mockMeds {
	return &mockMeds{items: make(map[uuid.UUID]*medication.Medication)}
}

func (m *mockMeds) add(patientID uuid.UUID, name string) *medication.Medication {
	med := &medication.Medication{ID: uuid.New(), PatientID: patientID, MedicationName: name, Status: medication.StatusActive}
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

type mockLinkRepo struct {
	links map[uuid.UUID]*MedicationLink
	conds *mockRepo
	meds  *mockMeds
	// raced marks medication ids whose insert loses to a concurrent writer.
	raced map[uuid.UUID]bool
	clock time.Time
}

func newMockLinkRepo(conds *mockRepo, meds *mockMeds) *mockLinkRepo {
	return &mockLinkRepo{
		links: make(map[uuid.UUID]*MedicationLink),
		conds: conds,
		meds:  meds,
		raced: make(map[uuid.UUID]bool),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockLinkRepo) Insert(_ context.Context, l *MedicationLink) (bool, error) {
	if r.raced[l.MedicationID] {
		return false, nil
	}
	for _, existing := range r.links {
		if existing.ConditionID == l.ConditionID && existing.MedicationID == l.MedicationID {
			return false, nil
		}
	}
	r.clock = r.clock.Add(time.Second)
	l.ID = uuid.New()
	l.CreatedAt = r.clock
	l.UpdatedAt = r.clock
	cp := *l
	r.links[l.ID] = &cp
	return true, nil
}

func (r *mockLinkRepo) Get(_ context.Context, conditionID, linkID uuid.UUID) (*MedicationLink, error) {
	l, ok := r.links[linkID]
	if !ok || l.ConditionID != conditionID {
		return nil, fmt.Errorf("get condition medication: %w", apperr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (r *mockLinkRepo) ListByCondition(_ context.Context, conditionID uuid.UUID) ([]*LinkView, error) {
	var out []*LinkView
	for _, l := range r.links {
		if l.ConditionID != conditionID {
			continue
		}
		s := r.meds.items[l.MedicationID].Summary()
		out = append(out, &LinkView{MedicationLink: *l, Medication: &s})
	}
	return out, nil
}

func (r *mockLinkRepo) ListByMedication(_ context.Context, medicationID uuid.UUID) ([]*LinkView, error) {
	var out []*LinkView
	for _, l := range r.links {
		if l.MedicationID != medicationID {
			continue
		}
		s := r.conds.items[l.ConditionID].Summary()
		out = append(out, &LinkView{MedicationLink: *l, Condition: &s})
	}
	return out, nil
}

func (r *mockLinkRepo) UpdateNote(_ context.Context, l *MedicationLink) error {
	existing, ok := r.links[l.ID]
	if !ok || existing.ConditionID != l.ConditionID {
		return fmt.Errorf("update condition medication: %w", apperr.ErrNotFound)
	}
	r.clock = r.clock.Add(time.Second)
	l.UpdatedAt = r.clock
	cp := *l
	r.links[l.ID] = &cp
	return nil
}

func (r *mockLinkRepo) Delete(_ context.Context, conditionID, linkID uuid.UUID) error {
	l, ok := r.links[linkID]
	if !ok || l.ConditionID != conditionID {
		return fmt.Errorf("delete condition medication: %w", apperr.ErrNotFound)
	}
	delete(r.links, linkID)
	return nil
}

type countingTx struct{ calls int }

func (t *countingTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type countingRecorder struct {
	created, skipped, deleted map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{created: map[string]int{}, skipped: map[string]int{}, deleted: map[string]int{}}
}

func (r *countingRecorder) LinksCreated(kind string, n int) { r.created[kind] += n }
func (r *countingRecorder) LinksSkipped(kind string, n int) { r.skipped[kind] += n }
func (r *countingRecorder) LinksDeleted(kind string, n int) { r.deleted[kind] += n }
