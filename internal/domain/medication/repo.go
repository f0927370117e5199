package medication

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and writes medications. Every lookup is keyed by the
// owning patient, so a row of another patient is reported as not found.
type Repository interface {
	Create(ctx context.Context, m *Medication) error
	Get(ctx context.Context, patientID, id uuid.UUID) (*Medication, error)
	List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Medication, int, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}
