package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/db"
)

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository {
	return &linkRepoPG{pool: pool}
}

const linkCols = `tm.id, tm.treatment_id, tm.medication_id, tm.specific_dosage, tm.specific_frequency,
	tm.specific_prescriber_id, tm.specific_pharmacy_id, tm.specific_start_date, tm.specific_end_date,
	tm.relevance_note, tm.created_at, tm.updated_at`

func linkDest(l *MedicationLink) []interface{} {
	return []interface{}{&l.ID, &l.TreatmentID, &l.MedicationID, &l.SpecificDosage, &l.SpecificFrequency,
		&l.SpecificPrescriberID, &l.SpecificPharmacyID, &l.SpecificStartDate, &l.SpecificEndDate,
		&l.RelevanceNote, &l.CreatedAt, &l.UpdatedAt}
}

func (r *linkRepoPG) Lock(ctx context.Context, treatmentID uuid.UUID) error {
	var id uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id FROM treatment WHERE id = $1 FOR UPDATE`, treatmentID).Scan(&id)
	return db.Classify(err, "lock treatment")
}

func (r *linkRepoPG) Exists(ctx context.Context, treatmentID, medicationID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM treatment_medication WHERE treatment_id = $1 AND medication_id = $2)`,
		treatmentID, medicationID).Scan(&exists)
	if err != nil {
		return false, db.Classify(err, "check treatment medication")
	}
	return exists, nil
}

func (r *linkRepoPG) Insert(ctx context.Context, l *MedicationLink) error {
	l.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO treatment_medication (id, treatment_id, medication_id, specific_dosage, specific_frequency,
			specific_prescriber_id, specific_pharmacy_id, specific_start_date, specific_end_date, relevance_note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		l.ID, l.TreatmentID, l.MedicationID, l.SpecificDosage, l.SpecificFrequency,
		l.SpecificPrescriberID, l.SpecificPharmacyID, l.SpecificStartDate, l.SpecificEndDate, l.RelevanceNote,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return db.Classify(err, "insert treatment medication")
}

func (r *linkRepoPG) Get(ctx context.Context, treatmentID, linkID uuid.UUID) (*MedicationLink, error) {
	var l MedicationLink
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+linkCols+` FROM treatment_medication tm WHERE tm.treatment_id = $1 AND tm.id = $2`,
		treatmentID, linkID).Scan(linkDest(&l)...)
	if err != nil {
		return nil, db.Classify(err, "get treatment medication")
	}
	return &l, nil
}

func (r *linkRepoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]LinkedMedication, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+linkCols+`, `+medication.Columns+`
		FROM treatment_medication tm
		JOIN medication m ON m.id = tm.medication_id
		WHERE tm.treatment_id = $1
		ORDER BY tm.created_at, tm.id`, treatmentID)
	if err != nil {
		return nil, db.Classify(err, "list treatment medications")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LinkedMedication, error) {
		lm := LinkedMedication{Link: &MedicationLink{}, Medication: &medication.Medication{}}
		err := row.Scan(append(linkDest(lm.Link), medication.ScanInto(lm.Medication)...)...)
		return lm, err
	})
	if err != nil {
		return nil, db.Classify(err, "scan treatment medications")
	}
	return out, nil
}

func (r *linkRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]LinkedTreatment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+linkCols+`, `+treatmentCols+`
		FROM treatment_medication tm
		JOIN treatment t ON t.id = tm.treatment_id
		WHERE tm.medication_id = $1
		ORDER BY tm.created_at, tm.id`, medicationID)
	if err != nil {
		return nil, db.Classify(err, "list medication treatments")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LinkedTreatment, error) {
		lt := LinkedTreatment{Link: &MedicationLink{}, Treatment: &Treatment{}}
		err := row.Scan(append(linkDest(lt.Link), treatmentDest(lt.Treatment)...)...)
		return lt, err
	})
	if err != nil {
		return nil, db.Classify(err, "scan medication treatments")
	}
	return out, nil
}

func (r *linkRepoPG) Update(ctx context.Context, l *MedicationLink) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE treatment_medication SET specific_dosage=$3, specific_frequency=$4,
			specific_prescriber_id=$5, specific_pharmacy_id=$6, specific_start_date=$7,
			specific_end_date=$8, relevance_note=$9, updated_at=NOW()
		WHERE treatment_id = $1 AND id = $2
		RETURNING updated_at`,
		l.TreatmentID, l.ID, l.SpecificDosage, l.SpecificFrequency,
		l.SpecificPrescriberID, l.SpecificPharmacyID, l.SpecificStartDate,
		l.SpecificEndDate, l.RelevanceNote,
	).Scan(&l.UpdatedAt)
	return db.Classify(err, "update treatment medication")
}

func (r *linkRepoPG) Delete(ctx context.Context, treatmentID, linkID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM treatment_medication WHERE treatment_id = $1 AND id = $2`, treatmentID, linkID)
	if err != nil {
		return db.Classify(err, "delete treatment medication")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete treatment medication: %w", apperr.ErrNotFound)
	}
	return nil
}
