package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("medication")
	}
	return err
}

func (s *Service) CreateMedication(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Medication, error) {
	m, err := req.build(patientID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Stringer("medication_id", m.ID).Msg("medication created")
	return m, nil
}

// GetMedication returns the medication only if patientID owns it.
func (s *Service) GetMedication(ctx context.Context, patientID, id uuid.UUID) (*Medication, error) {
	m, err := s.repo.Get(ctx, patientID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Medication, int, error) {
	return s.repo.List(ctx, patientID, f)
}

func (s *Service) UpdateMedication(ctx context.Context, patientID, id uuid.UUID, req UpdateRequest) (*Medication, error) {
	m, err := s.GetMedication(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("medication_id", m.ID).Msg("medication updated")
	return m, nil
}

// DeleteMedication removes the medication together with its condition and
// treatment links.
func (s *Service) DeleteMedication(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, patientID, id); err != nil {
		return notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("medication_id", id).Msg("medication deleted")
	return nil
}
