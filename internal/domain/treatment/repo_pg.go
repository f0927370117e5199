package treatment

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

const treatmentCols = `t.id, t.patient_id, t.condition_id, t.practitioner_id, t.treatment_name, t.treatment_type,
	t.mode, t.status, t.start_date, t.end_date, t.frequency, t.outcome, t.description, t.location,
	t.notes, t.created_at, t.updated_at`

func treatmentDest(t *Treatment) []interface{} {
	return []interface{}{&t.ID, &t.PatientID, &t.ConditionID, &t.PractitionerID, &t.TreatmentName, &t.TreatmentType,
		&t.Mode, &t.Status, &t.StartDate, &t.EndDate, &t.Frequency, &t.Outcome, &t.Description, &t.Location,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt}
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO treatment (id, patient_id, condition_id, practitioner_id, treatment_name, treatment_type,
			mode, status, start_date, end_date, frequency, outcome, description, location, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.ConditionID, t.PractitionerID, t.TreatmentName, t.TreatmentType,
		t.Mode, t.Status, t.StartDate, t.EndDate, t.Frequency, t.Outcome, t.Description, t.Location, t.Notes,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return db.Classify(err, "insert treatment")
}

func (r *repoPG) Get(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error) {
	var t Treatment
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatment t WHERE t.patient_id = $1 AND t.id = $2`,
		patientID, id).Scan(treatmentDest(&t)...)
	if err != nil {
		return nil, db.Classify(err, "get treatment")
	}
	return &t, nil
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Treatment, int, error) {
	where := []string{"t.patient_id = $1"}
	args := []interface{}{patientID}
	if pattern := f.SearchPattern(); pattern != "" {
		args = append(args, pattern)
		where = append(where, fmt.Sprintf("t.treatment_name ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.ConditionID != nil {
		args = append(args, *f.ConditionID)
		where = append(where, fmt.Sprintf("t.condition_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM treatment t WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count treatments")
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT `+treatmentCols+` FROM treatment t WHERE %s
		ORDER BY t.start_date DESC NULLS LAST, t.created_at DESC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "list treatments")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Treatment, error) {
		var t Treatment
		if err := row.Scan(treatmentDest(&t)...); err != nil {
			return nil, err
		}
		return &t, nil
	})
	if err != nil {
		return nil, 0, db.Classify(err, "scan treatments")
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, t *Treatment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE treatment SET condition_id=$3, practitioner_id=$4, treatment_name=$5, treatment_type=$6,
			mode=$7, status=$8, start_date=$9, end_date=$10, frequency=$11, outcome=$12,
			description=$13, location=$14, notes=$15, updated_at=NOW()
		WHERE patient_id = $1 AND id = $2
		RETURNING updated_at`,
		t.PatientID, t.ID, t.ConditionID, t.PractitionerID, t.TreatmentName, t.TreatmentType,
		t.Mode, t.Status, t.StartDate, t.EndDate, t.Frequency, t.Outcome, t.Description, t.Location, t.Notes,
	).Scan(&t.UpdatedAt)
	return db.Classify(err, "update treatment")
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM treatment WHERE patient_id = $1 AND id = $2`, patientID, id)
	if err != nil {
		return db.Classify(err, "delete treatment")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete treatment: %w", apperr.ErrNotFound)
	}
	return nil
}
