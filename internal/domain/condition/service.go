package condition

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

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

type Service struct {
	repo  Repository
	links LinkRepository
	meds  MedicationLookup
	tx    db.Transactor
	rec   telemetry.LinkRecorder
	now   func() time.Time
}

func NewService(repo Repository, links LinkRepository, meds MedicationLookup, tx db.Transactor, rec telemetry.LinkRecorder) *Service {
	if rec == nil {
		rec = telemetry.Discard
	}
	return &Service{repo: repo, links: links, meds: meds, tx: tx, rec: rec, now: time.Now}
}

func (s *Service) today() caldate.Date {
	return caldate.Today(s.now())
}

func notFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("condition")
	}
	return err
}

func linkNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("condition medication link")
	}
	return err
}

func (s *Service) CreateCondition(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Condition, error) {
	c, err := req.build(patientID, s.today())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Stringer("condition_id", c.ID).Msg("condition created")
	return c, nil
}

func (s *Service) GetCondition(ctx context.Context, patientID, id uuid.UUID) (*Condition, error) {
	c, err := s.repo.Get(ctx, patientID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *Service) ListConditions(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Condition, int, error) {
	return s.repo.List(ctx, patientID, f)
}

func (s *Service) UpdateCondition(ctx context.Context, patientID, id uuid.UUID, req UpdateRequest) (*Condition, error) {
	c, err := s.GetCondition(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(c, s.today()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("condition_id", c.ID).Msg("condition updated")
	return c, nil
}

func (s *Service) DeleteCondition(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, patientID, id); err != nil {
		return notFound(err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("condition_id", id).Msg("condition deleted")
	return nil
}

// CreateLink links one medication to a condition. Both must belong to
// patientID; an existing pair is rejected as a duplicate.
func (s *Service) CreateLink(ctx context.Context, patientID, conditionID uuid.UUID, req CreateLinkRequest) (*LinkView, error) {
	note := patch.TextPtr(req.RelevanceNote)
	if err := checkRelevanceNote(note); err != nil {
		return nil, err
	}
	if _, err := s.GetCondition(ctx, patientID, conditionID); err != nil {
		return nil, err
	}
	m, err := s.meds.GetMedication(ctx, patientID, req.MedicationID)
	if err != nil {
		return nil, err
	}

	l := &MedicationLink{ConditionID: conditionID, MedicationID: m.ID, RelevanceNote: note}
	created, err := s.links.Insert(ctx, l)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apperr.Duplicate("medication is already linked to this condition")
	}
	s.rec.LinksCreated(telemetry.KindConditionMedication, 1)
	zerolog.Ctx(ctx).Debug().
		Stringer("condition_id", conditionID).
		Stringer("medication_id", m.ID).
		Msg("condition medication linked")

	summary := m.Summary()
	return &LinkView{MedicationLink: *l, Medication: &summary}, nil
}

// BulkCreateLinks links every listed medication that is not yet linked to
// the condition. Already-linked ids are reported as skipped, not rejected.
// Ownership of every id is checked before anything is written.
func (s *Service) BulkCreateLinks(ctx context.Context, patientID, conditionID uuid.UUID, req BulkLinkRequest) (*BulkResult, error) {
	if len(req.MedicationIDs) == 0 {
		return nil, apperr.Invalid("medication_ids", "must not be empty")
	}
	note := patch.TextPtr(req.RelevanceNote)
	if err := checkRelevanceNote(note); err != nil {
		return nil, err
	}
	if _, err := s.GetCondition(ctx, patientID, conditionID); err != nil {
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
		for _, m := range meds {
			l := &MedicationLink{ConditionID: conditionID, MedicationID: m.ID, RelevanceNote: note}
			created, err := s.links.Insert(ctx, l)
			if err != nil {
				return err
			}
			if !created {
				res.SkippedMedicationIDs = append(res.SkippedMedicationIDs, m.ID)
				continue
			}
			summary := m.Summary()
			res.Created = append(res.Created, &LinkView{MedicationLink: *l, Medication: &summary})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rec.LinksCreated(telemetry.KindConditionMedication, len(res.Created))
	s.rec.LinksSkipped(telemetry.KindConditionMedication, len(res.SkippedMedicationIDs))
	zerolog.Ctx(ctx).Debug().
		Stringer("condition_id", conditionID).
		Int("created", len(res.Created)).
		Int("skipped", len(res.SkippedMedicationIDs)).
		Msg("condition medications bulk linked")
	return res, nil
}

func (s *Service) ListLinksByCondition(ctx context.Context, patientID, conditionID uuid.UUID) ([]*LinkView, error) {
	if _, err := s.GetCondition(ctx, patientID, conditionID); err != nil {
		return nil, err
	}
	return s.links.ListByCondition(ctx, conditionID)
}

func (s *Service) ListLinksByMedication(ctx context.Context, patientID, medicationID uuid.UUID) ([]*LinkView, error) {
	if _, err := s.meds.GetMedication(ctx, patientID, medicationID); err != nil {
		return nil, err
	}
	return s.links.ListByMedication(ctx, medicationID)
}

// UpdateLink changes only the relevance note.
func (s *Service) UpdateLink(ctx context.Context, patientID, conditionID, linkID uuid.UUID, req UpdateLinkRequest) (*MedicationLink, error) {
	if _, err := s.GetCondition(ctx, patientID, conditionID); err != nil {
		return nil, err
	}
	l, err := s.links.Get(ctx, conditionID, linkID)
	if err != nil {
		return nil, linkNotFound(err)
	}
	patch.Text(req.RelevanceNote).Apply(&l.RelevanceNote)
	if err := checkRelevanceNote(l.RelevanceNote); err != nil {
		return nil, err
	}
	if err := s.links.UpdateNote(ctx, l); err != nil {
		return nil, linkNotFound(err)
	}
	return l, nil
}

// DeleteLink removes a link. A link that belongs to another condition is
// reported as not found.
func (s *Service) DeleteLink(ctx context.Context, patientID, conditionID, linkID uuid.UUID) error {
	if _, err := s.GetCondition(ctx, patientID, conditionID); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, conditionID, linkID); err != nil {
		return linkNotFound(err)
	}
	s.rec.LinksDeleted(telemetry.KindConditionMedication, 1)
	zerolog.Ctx(ctx).Debug().Stringer("link_id", linkID).Msg("condition medication unlinked")
	return nil
}
