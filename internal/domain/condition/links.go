package condition

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/domain/medication"
	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/pkg/patch"
)

const maxRelevanceNoteLen = 500

// MedicationLink records that a medication is relevant to a condition. A
// condition/medication pair is linked at most once.
type MedicationLink struct {
	ID            uuid.UUID `json:"id"`
	ConditionID   uuid.UUID `json:"condition_id"`
	MedicationID  uuid.UUID `json:"medication_id"`
	RelevanceNote *string   `json:"relevance_note"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LinkView is a link with a snapshot of the endpoint on the other side of
// the listing: Medication when listing by condition, Condition when listing
// by medication.
type LinkView struct {
	MedicationLink
	Medication *medication.Summary `json:"medication,omitempty"`
	Condition  *Summary            `json:"condition,omitempty"`
}

func checkRelevanceNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > maxRelevanceNoteLen {
		return apperr.Invalid("relevance_note", fmt.Sprintf("must be at most %d characters", maxRelevanceNoteLen))
	}
	return nil
}

type CreateLinkRequest struct {
	MedicationID  uuid.UUID `json:"medication_id"`
	RelevanceNote *string   `json:"relevance_note"`
}

type BulkLinkRequest struct {
	MedicationIDs []uuid.UUID `json:"medication_ids"`
	RelevanceNote *string     `json:"relevance_note"`
}

// BulkResult reports which medications were linked and which were skipped
// because the pair already existed.
type BulkResult struct {
	Created              []*LinkView `json:"created"`
	SkippedMedicationIDs []uuid.UUID `json:"skipped_medication_ids"`
}

type UpdateLinkRequest struct {
	RelevanceNote patch.Field[string] `json:"relevance_note"`
}

// uniqueIDs drops repeats, keeping first occurrences in order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
