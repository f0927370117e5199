package condition

import (
	"context"
	"errors"
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

const linkCols = `cm.id, cm.condition_id, cm.medication_id, cm.relevance_note, cm.created_at, cm.updated_at`

func linkDest(l *MedicationLink) []interface{} {
	return []interface{}{&l.ID, &l.ConditionID, &l.MedicationID, &l.RelevanceNote, &l.CreatedAt, &l.UpdatedAt}
}

// Insert relies on the unique pair constraint: a concurrent insert of the
// same pair makes this one return no row instead of aborting the
// transaction.
func (r *linkRepoPG) Insert(ctx context.Context, l *MedicationLink) (bool, error) {
	id := uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO condition_medication (id, condition_id, medication_id, relevance_note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_condition_medication DO NOTHING
		RETURNING created_at, updated_at`,
		id, l.ConditionID, l.MedicationID, l.RelevanceNote,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.Classify(err, "insert condition medication")
	}
	l.ID = id
	return true, nil
}

func (r *linkRepoPG) Get(ctx context.Context, conditionID, linkID uuid.UUID) (*MedicationLink, error) {
	var l MedicationLink
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+linkCols+` FROM condition_medication cm WHERE cm.condition_id = $1 AND cm.id = $2`,
		conditionID, linkID).Scan(linkDest(&l)...)
	if err != nil {
		return nil, db.Classify(err, "get condition medication")
	}
	return &l, nil
}

func (r *linkRepoPG) ListByCondition(ctx context.Context, conditionID uuid.UUID) ([]*LinkView, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+linkCols+`, `+medication.Columns+`
		FROM condition_medication cm
		JOIN medication m ON m.id = cm.medication_id
		WHERE cm.condition_id = $1
		ORDER BY cm.created_at, cm.id`, conditionID)
	if err != nil {
		return nil, db.Classify(err, "list condition medications")
	}
	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LinkView, error) {
		var v LinkView
		var m medication.Medication
		if err := row.Scan(append(linkDest(&v.MedicationLink), medication.ScanInto(&m)...)...); err != nil {
			return nil, err
		}
		s := m.Summary()
		v.Medication = &s
		return &v, nil
	})
	if err != nil {
		return nil, db.Classify(err, "scan condition medications")
	}
	return views, nil
}

func (r *linkRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*LinkView, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+linkCols+`, `+conditionCols+`
		FROM condition_medication cm
		JOIN condition c ON c.id = cm.condition_id
		WHERE cm.medication_id = $1
		ORDER BY cm.created_at, cm.id`, medicationID)
	if err != nil {
		return nil, db.Classify(err, "list medication conditions")
	}
	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LinkView, error) {
		var v LinkView
		var c Condition
		dest := append(linkDest(&v.MedicationLink),
			&c.ID, &c.PatientID, &c.Diagnosis, &c.Status, &c.Severity, &c.OnsetDate, &c.EndDate,
			&c.ICD10Code, &c.SNOMEDCode, &c.PractitionerID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
		if err := row.Scan(dest...); err != nil {
			return nil, err
		}
		s := c.Summary()
		v.Condition = &s
		return &v, nil
	})
	if err != nil {
		return nil, db.Classify(err, "scan medication conditions")
	}
	return views, nil
}

func (r *linkRepoPG) UpdateNote(ctx context.Context, l *MedicationLink) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE condition_medication SET relevance_note = $3, updated_at = NOW()
		WHERE condition_id = $1 AND id = $2
		RETURNING updated_at`,
		l.ConditionID, l.ID, l.RelevanceNote).Scan(&l.UpdatedAt)
	return db.Classify(err, "update condition medication")
}

func (r *linkRepoPG) Delete(ctx context.Context, conditionID, linkID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM condition_medication WHERE condition_id = $1 AND id = $2`, conditionID, linkID)
	if err != nil {
		return db.Classify(err, "delete condition medication")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete condition medication: %w", apperr.ErrNotFound)
	}
	return nil
}
