package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/db"
	"github.com/ehr/phr/pkg/caldate"
)

type Service struct {
	repo Repository
	tx   db.Transactor
	now  func() time.Time
}

func NewService(repo Repository, tx db.Transactor) *Service {
	return &Service{repo: repo, tx: tx, now: time.Now}
}

func (s *Service) today() caldate.Date {
	return caldate.Today(s.now())
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("patient")
	}
	return err
}

// CreatePatient adds a patient for userID. The user's first patient is
// always primary; a later one becomes primary only when asked to, taking
// the flag from the previous primary.
func (s *Service) CreatePatient(ctx context.Context, userID string, req CreateRequest) (*Patient, error) {
	p, err := req.build(userID, s.today())
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.Count(ctx, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			p.IsPrimary = true
		} else if p.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, userID); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Stringer("patient_id", p.ID).Bool("primary", p.IsPrimary).Msg("patient created")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, userID string, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, userID string) ([]*Patient, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) UpdatePatient(ctx context.Context, userID string, id uuid.UUID, req UpdateRequest) (*Patient, error) {
	var p *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.GetPatient(ctx, userID, id)
		if err != nil {
			return err
		}
		wasPrimary := p.IsPrimary
		if err := req.apply(p, s.today()); err != nil {
			return err
		}
		if p.IsPrimary && !wasPrimary {
			if err := s.repo.ClearPrimary(ctx, userID); err != nil {
				return err
			}
		}
		return notFound(s.repo.Update(ctx, p))
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Stringer("patient_id", p.ID).Msg("patient updated")
	return p, nil
}

// DeletePatient removes a patient and everything recorded for them. The
// primary patient can only be deleted when it is the user's last one.
func (s *Service) DeletePatient(ctx context.Context, userID string, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.GetPatient(ctx, userID, id)
		if err != nil {
			return err
		}
		if p.IsPrimary {
			n, err := s.repo.Count(ctx, userID)
			if err != nil {
				return err
			}
			if n > 1 {
				return apperr.Invalid("is_primary", "mark another patient as primary before deleting this one")
			}
		}
		return notFound(s.repo.Delete(ctx, userID, id))
	})
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Stringer("patient_id", id).Msg("patient deleted")
	return nil
}

// Resolve picks the active patient for a request: the patient named by
// requested when it is non-empty, otherwise the user's primary patient. A
// requested patient the user does not own is not found, never replaced by
// the primary.
func (s *Service) Resolve(ctx context.Context, userID, requested string) (*Patient, error) {
	if requested != "" {
		id, err := uuid.Parse(requested)
		if err != nil {
			return nil, apperr.BadRequest("invalid " + PatientHeader + " header")
		}
		return s.GetPatient(ctx, userID, id)
	}
	p, err := s.repo.GetPrimary(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}
