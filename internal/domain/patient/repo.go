package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores patients. Every lookup is keyed by the owning user.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, userID string, id uuid.UUID) (*Patient, error)
	GetPrimary(ctx context.Context, userID string) (*Patient, error)
	List(ctx context.Context, userID string) ([]*Patient, error)
	Count(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, p *Patient) error
	// ClearPrimary unsets the primary flag on all of the user's patients.
	ClearPrimary(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}
