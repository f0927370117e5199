package medication

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Medication
	clock time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]*Medication),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *mockRepo) Create(_ context.Context, m *Medication) error {
	m.ID = uuid.New()
	m.CreatedAt = r.tick()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *mockRepo) Get(_ context.Context, patientID, id uuid.UUID) (*Medication, error) {
	m, ok := r.items[id]
	if !ok || m.PatientID != patientID {
		return nil, fmt.Errorf("get medication: %w", apperr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (r *mockRepo) List(_ context.Context, patientID uuid.UUID, f ListFilter) ([]*Medication, int, error) {
	var out []*Medication
	for _, m := range r.items {
		if m.PatientID != patientID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(m.MedicationName), strings.ToLower(f.Search)) {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		cp := *m
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

func (r *mockRepo) Update(_ context.Context, m *Medication) error {
	existing, ok := r.items[m.ID]
	if !ok || existing.PatientID != m.PatientID {
		return fmt.Errorf("update medication: %w", apperr.ErrNotFound)
	}
	m.UpdatedAt = r.tick()
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, patientID, id uuid.UUID) error {
	m, ok := r.items[id]
	if !ok || m.PatientID != patientID {
		return fmt.Errorf("delete medication: %w", apperr.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}
