package patient

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Patient
	clock time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]*Patient),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *mockRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = r.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *mockRepo) Get(_ context.Context, userID string, id uuid.UUID) (*Patient, error) {
	p, ok := r.items[id]
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("get patient: %w", apperr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *mockRepo) GetPrimary(_ context.Context, userID string) (*Patient, error) {
	for _, p := range r.items {
		if p.UserID == userID && p.IsPrimary {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get primary patient: %w", apperr.ErrNotFound)
}

func (r *mockRepo) List(_ context.Context, userID string) ([]*Patient, error) {
	var out []*Patient
	for _, p := range r.items {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *mockRepo) Count(_ context.Context, userID string) (int, error) {
	n := 0
	for _, p := range r.items {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *mockRepo) Update(_ context.Context, p *Patient) error {
	existing, ok := r.items[p.ID]
	if !ok || existing.UserID != p.UserID {
		return fmt.Errorf("update patient: %w", apperr.ErrNotFound)
	}
	p.UpdatedAt = r.tick()
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *mockRepo) ClearPrimary(_ context.Context, userID string) error {
	for _, p := range r.items {
		if p.UserID == userID {
			p.IsPrimary = false
		}
	}
	return nil
}

func (r *mockRepo) Delete(_ context.Context, userID string, id uuid.UUID) error {
	p, ok := r.items[id]
	if !ok || p.UserID != userID {
		return fmt.Errorf("delete patient: %w", apperr.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

func (r *mockRepo) primaries(userID string) int {
	n := 0
	for _, p := range r.items {
		if p.UserID == userID && p.IsPrimary {
			n++
		}
	}
	return n
}
