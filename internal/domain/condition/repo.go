package condition

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Condition) error
	Get(ctx context.Context, patientID, id uuid.UUID) (*Condition, error)
	List(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Condition, int, error)
	Update(ctx context.Context, c *Condition) error
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}

// LinkRepository stores condition-medication links. Callers check that both
// endpoints belong to the active patient before calling it.
type LinkRepository interface {
	// Insert adds l unless the pair is already linked, in which case it
	// reports false and leaves l untouched.
	Insert(ctx context.Context, l *MedicationLink) (bool, error)
	Get(ctx context.Context, conditionID, linkID uuid.UUID) (*MedicationLink, error)
	ListByCondition(ctx context.Context, conditionID uuid.UUID) ([]*LinkView, error)
	ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*LinkView, error)
	UpdateNote(ctx context.Context, l *MedicationLink) error
	Delete(ctx context.Context, conditionID, linkID uuid.UUID) error
}
