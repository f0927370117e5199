package treatment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	Get(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error)
	List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Treatment, int, error)
	Update(ctx context.Context, t *Treatment) error
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}

// LinkRepository stores treatment-medication links. The pair is not unique
// in storage; callers hold Lock while checking Exists and inserting.
type LinkRepository interface {
	// Lock takes a row lock on the treatment for the rest of the
	// transaction on ctx.
	Lock(ctx context.Context, treatmentID uuid.UUID) error
	Exists(ctx context.Context, treatmentID, medicationID uuid.UUID) (bool, error)
	Insert(ctx context.Context, l *MedicationLink) error
	Get(ctx context.Context, treatmentID, linkID uuid.UUID) (*MedicationLink, error)
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]LinkedMedication, error)
	ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]LinkedTreatment, error)
	Update(ctx context.Context, l *MedicationLink) error
	Delete(ctx context.Context, treatmentID, linkID uuid.UUID) error
}
