package patient

import (
	"context"
	"fmt"

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

const patientCols = `id, user_id, first_name, last_name, birth_date, is_primary, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.BirthDate, &p.IsPrimary, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, user_id, first_name, last_name, birth_date, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.FirstName, p.LastName, p.BirthDate, p.IsPrimary,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "insert patient")
}

func (r *repoPG) Get(ctx context.Context, userID string, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE user_id = $1 AND id = $2`, userID, id))
	if err != nil {
		return nil, db.Classify(err, "get patient")
	}
	return p, nil
}

func (r *repoPG) GetPrimary(ctx context.Context, userID string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE user_id = $1 AND is_primary`, userID))
	if err != nil {
		return nil, db.Classify(err, "get primary patient")
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, userID string) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+patientCols+` FROM patient WHERE user_id = $1 ORDER BY is_primary DESC, created_at`, userID)
	if err != nil {
		return nil, db.Classify(err, "list patients")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Patient, error) {
		return scanPatient(row)
	})
	if err != nil {
		return nil, db.Classify(err, "scan patients")
	}
	return items, nil
}

func (r *repoPG) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE user_id = $1`, userID).Scan(&n)
	return n, db.Classify(err, "count patients")
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient SET first_name=$3, last_name=$4, birth_date=$5, is_primary=$6, updated_at=NOW()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		p.UserID, p.ID, p.FirstName, p.LastName, p.BirthDate, p.IsPrimary,
	).Scan(&p.UpdatedAt)
	return db.Classify(err, "update patient")
}

func (r *repoPG) ClearPrimary(ctx context.Context, userID string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patient SET is_primary = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_primary`, userID)
	return db.Classify(err, "clear primary patient")
}

func (r *repoPG) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return db.Classify(err, "delete patient")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete patient: %w", apperr.ErrNotFound)
	}
	return nil
}
