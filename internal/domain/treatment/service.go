package treatment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/phr/internal/domain/condition"
	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/db"
	"github.com/ehr/phr/internal/platform/telemetry"
	"github.com/ehr/phr/pkg/caldate"
	"github.com/ehr/phr/pkg/patch"
)

// MedicationLookup resolves a medication within a patient's scope.
type MedicationLookup interface {
	GetMedication(ctx context.Context, patientID, id uuid.UUID) (*medication.Medication, error)
}

// ConditionLookup resolves a condition within a patient's scope.
type ConditionLookup interface {
	GetCondition(ctx context.Context, patientID, id uuid.UUID) (*condition.Condition, error)
}

type Service struct {
	repo       Repository
	links      LinkRepository
	meds       MedicationLookup
	conditions ConditionLookup
	tx         db.Transactor
	rec        telemetry.LinkRecorder
	now        func() time.Time
}

func NewService(repo Repository, links LinkRepository, meds MedicationLookup, conditions ConditionLookup,
	tx db.Transactor, rec telemetry.LinkRecorder) *Service {
	if rec == nil {
		rec = telemetry.Discard
	}
	return &Service{repo: repo, links: links, meds: meds, conditions: conditions, tx: tx, rec: rec, now: time.Now}
}

func (s *Service) today() caldate.Date {
	return caldate.Today(s.now())
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("treatment")
	}
	return err
}

func linkNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("treatment medication link")
	}
	return err
}

func (s *Service) checkCondition(ctx context.Context, patientID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := s.conditions.GetCondition(ctx, patientID, *id)
	return err
}

func (s *Service) CreateTreatment(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Treatment, error) {
	t, err := req.build(patientID, s.today())
	if err != nil {
		return nil, err
	}
	if err := s.checkCondition(ctx, patientID, t.ConditionID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Stringer("treatment_id", t.ID).Str("status", string(t.Status)).Msg("treatment created")
	return t, nil
}

func (s *Service) GetTreatment(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error) {
	t, err := s.repo.Get(ctx, patientID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s *Service) ListTreatments(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Treatment, int, error) {
	return s.repo.List(ctx, patientID, f)
}

func (s *Service) UpdateTreatment(ctx context.Context, patientID, id uuid.UUID, req UpdateRequest) (*Treatment, error) {
	t, err := s.GetTreatment(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(t, s.today()); err != nil {
		return nil, err
	}
	if req.ConditionID.Present() {
		if err := s.checkCondition(ctx, patientID, t.ConditionID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("treatment_id", t.ID).Msg("treatment updated")
	return t, nil
}

// DeleteTreatment removes the treatment and its medication links.
func (s *Service) DeleteTreatment(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, patientID, id); err != nil {
		return notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("treatment_id", id).Msg("treatment deleted")
	return nil
}

// CreateLink links a medication to a treatment with optional overrides.
// Linking the same medication twice is rejected; the check runs under a
// lock on the treatment row so concurrent creates cannot both pass it.
func (s *Service) CreateLink(ctx context.Context, patientID, treatmentID uuid.UUID, req CreateLinkRequest) (*LinkView, error) {
	l, err := req.build(treatmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return nil, err
	}
	m, err := s.meds.GetMedication(ctx, patientID, req.MedicationID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.links.Lock(ctx, treatmentID); err != nil {
			return notFound(err)
		}
		exists, err := s.links.Exists(ctx, treatmentID, m.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Duplicate("medication is already linked to this treatment")
		}
		return s.links.Insert(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.rec.LinksCreated(telemetry.KindTreatmentMedication, 1)
	zerolog.Ctx(ctx).Debug().
		Stringer("treatment_id", treatmentID).
		Stringer("medication_id", m.ID).
		Msg("treatment medication linked")
	return medicationView(l, m), nil
}

// BulkCreateLinks links every listed medication not yet linked to the
// treatment, without overrides. Already-linked ids are skipped.
func (s *Service) BulkCreateLinks(ctx context.Context, patientID, treatmentID uuid.UUID, req BulkLinkRequest) (*BulkResult, error) {
	if len(req.MedicationIDs) == 0 {
		return nil, apperr.Invalid("medication_ids", "must not be empty")
	}
	note := patch.TextPtr(req.RelevanceNote)
	if err := (&MedicationLink{RelevanceNote: note}).validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.MedicationIDs)
	meds := make([]*medication.Medication, 0, len(ids))
	for _, id := range ids {
		m, err := s.meds.GetMedication(ctx, patientID, id)
		if err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}

	res := &BulkResult{Created: []*LinkView{}, SkippedMedicationIDs: []uuid.UUID{}}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.links.Lock(ctx, treatmentID); err != nil {
			return notFound(err)
		}
		for _, m := range meds {
			exists, err := s.links.Exists(ctx, treatmentID, m.ID)
			if err != nil {
				return err
			}
			if exists {
				res.SkippedMedicationIDs = append(res.SkippedMedicationIDs, m.ID)
				continue
			}
			l := &MedicationLink{TreatmentID: treatmentID, MedicationID: m.ID, RelevanceNote: note}
			if err := s.links.Insert(ctx, l); err != nil {
				return err
			}
			res.Created = append(res.Created, medicationView(l, m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rec.LinksCreated(telemetry.KindTreatmentMedication, len(res.Created))
	s.rec.LinksSkipped(telemetry.KindTreatmentMedication, len(res.SkippedMedicationIDs))
	zerolog.Ctx(ctx).Debug().
		Stringer("treatment_id", treatmentID).
		Int("created", len(res.Created)).
		Int("skipped", len(res.SkippedMedicationIDs)).
		Msg("treatment medications bulk linked")
	return res, nil
}

// ListLinksByTreatment returns the treatment's links with effective values
// resolved against each medication as it is now.
func (s *Service) ListLinksByTreatment(ctx context.Context, patientID, treatmentID uuid.UUID) ([]*LinkView, error) {
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return nil, err
	}
	rows, err := s.links.ListByTreatment(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	views := make([]*LinkView, 0, len(rows))
	for _, r := range rows {
		views = append(views, medicationView(r.Link, r.Medication))
	}
	return views, nil
}

func (s *Service) ListLinksByMedication(ctx context.Context, patientID, medicationID uuid.UUID) ([]*LinkView, error) {
	m, err := s.meds.GetMedication(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.links.ListByMedication(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	views := make([]*LinkView, 0, len(rows))
	for _, r := range rows {
		views = append(views, treatmentView(r.Link, r.Treatment, m))
	}
	return views, nil
}

func (s *Service) GetLink(ctx context.Context, patientID, treatmentID, linkID uuid.UUID) (*LinkView, error) {
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return nil, err
	}
	l, err := s.links.Get(ctx, treatmentID, linkID)
	if err != nil {
		return nil, linkNotFound(err)
	}
	m, err := s.meds.GetMedication(ctx, patientID, l.MedicationID)
	if err != nil {
		return nil, err
	}
	return medicationView(l, m), nil
}

// UpdateLink merge-patches the link's overrides: omitted fields keep their
// value and null clears them.
func (s *Service) UpdateLink(ctx context.Context, patientID, treatmentID, linkID uuid.UUID, req UpdateLinkRequest) (*LinkView, error) {
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return nil, err
	}
	l, err := s.links.Get(ctx, treatmentID, linkID)
	if err != nil {
		return nil, linkNotFound(err)
	}
	if err := req.apply(l); err != nil {
		return nil, err
	}
	m, err := s.meds.GetMedication(ctx, patientID, l.MedicationID)
	if err != nil {
		return nil, err
	}
	if err := s.links.Update(ctx, l); err != nil {
		return nil, linkNotFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("link_id", l.ID).Msg("treatment medication updated")
	return medicationView(l, m), nil
}

func (s *Service) DeleteLink(ctx context.Context, patientID, treatmentID, linkID uuid.UUID) error {
	if _, err := s.GetTreatment(ctx, patientID, treatmentID); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, treatmentID, linkID); err != nil {
		return linkNotFound(err)
	}
	s.rec.LinksDeleted(telemetry.KindTreatmentMedication, 1)
	zerolog.Ctx(ctx).Debug().Stringer("link_id", linkID).Msg("treatment medication unlinked")
	return nil
}
