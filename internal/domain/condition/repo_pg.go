package condition

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const conditionCols = `c.id, c.patient_id, c.diagnosis, c.status, c.severity, c.onset_date, c.end_date,
	c.icd10_code, c.snomed_code, c.practitioner_id, c.notes, c.created_at, c.updated_at`

func scanCondition(row pgx.Row) (*Condition, error) {
	var c Condition
	err := row.Scan(&c.ID, &c.PatientID, &c.Diagnosis, &c.Status, &c.Severity, &c.OnsetDate, &c.EndDate,
		&c.ICD10Code, &c.SNOMEDCode, &c.PractitionerID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Condition) error {
	c.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO condition (id, patient_id, diagnosis, status, severity, onset_date, end_date,
			icd10_code, snomed_code, practitioner_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.Diagnosis, c.Status, c.Severity, c.OnsetDate, c.EndDate,
		c.ICD10Code, c.SNOMEDCode, c.PractitionerID, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.Classify(err, "insert condition")
}

func (r *repoPG) Get(ctx context.Context, patientID, id uuid.UUID) (*Condition, error) {
	c, err := scanCondition(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+conditionCols+` FROM condition c WHERE c.patient_id = $1 AND c.id = $2`, patientID, id))
	if err != nil {
		return nil, db.Classify(err, "get condition")
	}
	return c, nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Condition, int, error) {
	where := []string{"c.patient_id = $1"}
	args := []interface{}{patientID}
	if pattern := f.SearchPattern(); pattern != "" {
		args = append(args, pattern)
		where = append(where, fmt.Sprintf("c.diagnosis ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM condition c WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count conditions")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT `+conditionCols+` FROM condition c WHERE %s
		ORDER BY c.onset_date DESC NULLS LAST, c.created_at DESC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list conditions")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Condition, error) {
		return scanCondition(row)
	})
	if err != nil {
		return nil, 0, db.Classify(err, "scan conditions")
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, c *Condition) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE condition SET diagnosis=$3, status=$4, severity=$5, onset_date=$6, end_date=$7,
			icd10_code=$8, snomed_code=$9, practitioner_id=$10, notes=$11, updated_at=NOW()
		WHERE patient_id = $1 AND id = $2
		RETURNING updated_at`,
		c.PatientID, c.ID, c.Diagnosis, c.Status, c.Severity, c.OnsetDate, c.EndDate,
		c.ICD10Code, c.SNOMEDCode, c.PractitionerID, c.Notes,
	).Scan(&c.UpdatedAt)
	return db.Classify(err, "update condition")
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM condition WHERE patient_id = $1 AND id = $2`, patientID, id)
	if err != nil {
		return db.Classify(err, "delete condition")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete condition: %w", apperr.ErrNotFound)
	}
	return nil
}
