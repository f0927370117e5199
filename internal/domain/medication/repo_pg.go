package medication

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

// Columns is the select list for medication rows, qualified by alias m so
// other packages can join against it.
const Columns = `m.id, m.patient_id, m.medication_name, m.dosage, m.frequency, m.route,
	m.indication, m.status, m.effective_period_start, m.effective_period_end,
	m.practitioner_id, m.pharmacy_id, m.notes, m.created_at, m.updated_at`

// ScanInto returns the scan destinations matching Columns.
func ScanInto(m *Medication) []interface{} {
	return []interface{}{&m.ID, &m.PatientID, &m.MedicationName, &m.Dosage, &m.Frequency, &m.Route,
		&m.Indication, &m.Status, &m.EffectivePeriodStart, &m.EffectivePeriodEnd,
		&m.PractitionerID, &m.PharmacyID, &m.Notes, &m.CreatedAt, &m.UpdatedAt}
}

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	if err := row.Scan(ScanInto(&m)...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication (id, patient_id, medication_name, dosage, frequency, route,
			indication, status, effective_period_start, effective_period_end,
			practitioner_id, pharmacy_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.MedicationName, m.Dosage, m.Frequency, m.Route,
		m.Indication, m.Status, m.EffectivePeriodStart, m.EffectivePeriodEnd,
		m.PractitionerID, m.PharmacyID, m.Notes,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.Classify(err, "insert medication")
}

func (r *repoPG) Get(ctx context.Context, patientID, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+Columns+` FROM medication m WHERE m.patient_id = $1 AND m.id = $2`, patientID, id))
	if err != nil {
		return nil, db.Classify(err, "get medication")
	}
	return m, nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Medication, int, error) {
	where := []string{"m.patient_id = $1"}
	args := []interface{}{patientID}
	if pattern := f.SearchPattern(); pattern != "" {
		args = append(args, pattern)
		where = append(where, fmt.Sprintf("m.medication_name ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("m.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM medication m WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count medications")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT `+Columns+` FROM medication m WHERE %s
		ORDER BY m.created_at DESC, m.id LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list medications")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Medication, error) {
		return scanMedication(row)
	})
	if err != nil {
		return nil, 0, db.Classify(err, "scan medications")
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medication SET medication_name=$3, dosage=$4, frequency=$5, route=$6,
			indication=$7, status=$8, effective_period_start=$9, effective_period_end=$10,
			practitioner_id=$11, pharmacy_id=$12, notes=$13, updated_at=NOW()
		WHERE patient_id = $1 AND id = $2
		RETURNING updated_at`,
		m.PatientID, m.ID, m.MedicationName, m.Dosage, m.Frequency, m.Route,
		m.Indication, m.Status, m.EffectivePeriodStart, m.EffectivePeriodEnd,
		m.PractitionerID, m.PharmacyID, m.Notes,
	).Scan(&m.UpdatedAt)
	return db.Classify(err, "update medication")
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM medication WHERE patient_id = $1 AND id = $2`, patientID, id)
	if err != nil {
		return db.Classify(err, "delete medication")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete medication: %w", apperr.ErrNotFound)
	}
	return nil
}
